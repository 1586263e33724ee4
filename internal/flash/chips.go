package flash

// CommandSet selects the flash command family a chip speaks.
type CommandSet int

const (
	IntelCommandSet CommandSet = iota
	AMDCommandSet
)

// BlockRegion is a run of equally sized erase blocks.
type BlockRegion struct {
	Count uint32
	Size  uint32
}

// Block is one erase block resolved to its start address.
type Block struct {
	Addr uint32
	Size uint32
}

// Chip describes a supported flash part. The block regions are ordered by
// ascending address and their sizes sum to Size.
type Chip struct {
	Manufacturer uint16
	Device       uint16
	Name         string
	Size         uint32
	Blocks       []BlockRegion
	CommandSet   CommandSet
}

// BlockList expands the block regions into individual blocks in ascending
// address order.
func (c *Chip) BlockList() []Block {
	var blocks []Block
	addr := uint32(0)
	for _, r := range c.Blocks {
		for i := uint32(0); i < r.Count; i++ {
			blocks = append(blocks, Block{Addr: addr, Size: r.Size})
			addr += r.Size
		}
	}
	return blocks
}

// NumBlocks returns the total number of erase blocks.
func (c *Chip) NumBlocks() int {
	n := 0
	for _, r := range c.Blocks {
		n += int(r.Count)
	}
	return n
}

// Catalog lists all supported flash parts. IDs and block geometry are taken
// from the respective datasheets.
var Catalog = []*Chip{
	{
		Manufacturer: 0x0089, Device: 0x88C5,
		Name: "Intel 28F320C3B", Size: 0x400000,
		Blocks:     []BlockRegion{{8, 8192}, {63, 65536}},
		CommandSet: IntelCommandSet,
	},
	{
		Manufacturer: 0x0089, Device: 0x88C4,
		Name: "Intel 28F320C3T", Size: 0x400000,
		Blocks:     []BlockRegion{{63, 65536}, {8, 8192}},
		CommandSet: IntelCommandSet,
	},
	{
		Manufacturer: 0x0001, Device: 0x22F9,
		Name: "AMD Am29LV320DB", Size: 0x400000,
		Blocks:     []BlockRegion{{8, 8192}, {63, 65536}},
		CommandSet: AMDCommandSet,
	},
	{
		Manufacturer: 0x0001, Device: 0x2249,
		Name: "AMD Am29LV160DB", Size: 0x200000,
		Blocks:     []BlockRegion{{1, 16384}, {2, 8192}, {1, 32768}, {31, 65536}},
		CommandSet: AMDCommandSet,
	},
	{
		Manufacturer: 0x00C2, Device: 0x22A8,
		Name: "Macronix MX29LV320CB", Size: 0x400000,
		Blocks:     []BlockRegion{{8, 8192}, {63, 65536}},
		CommandSet: AMDCommandSet,
	},
}

// Lookup finds a catalog entry by its manufacturer/device ID pair.
func Lookup(mfg, dev uint16) *Chip {
	for _, c := range Catalog {
		if c.Manufacturer == mfg && c.Device == dev {
			return c
		}
	}
	return nil
}
