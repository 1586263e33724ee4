package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ondrej-zary/cx861xx-flash/internal/flash"
	"github.com/ondrej-zary/cx861xx-flash/internal/flasher"
	"github.com/ondrej-zary/cx861xx-flash/internal/image"
	"github.com/ondrej-zary/cx861xx-flash/internal/usb"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes, kept stable for scripts driving this tool
const (
	exitNoDevice        = 1
	exitClaim           = 2
	exitUsage           = 3
	exitAlloc           = 4
	exitFile            = 5
	exitUnsupportedChip = 6
)

var errUsage = errors.New("bad usage")

var verifyFlag bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "cx861xx-flash",
		Short: "Reprogram NOR flash on Conexant CX861xx/CX82xxx boards over USB",
		Long: `cx861xx-flash talks to the USB boot loader of Conexant CX861xx and
CX82xxx network processors and reads or reprograms the external NOR flash.

Put the board into USB boot mode (boot strap pins) and connect it before
running any command. Images may be raw binaries or Intel HEX files.`,
		SilenceUsage: true,
	}

	readCmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Read the whole flash into a file",
		Args:  exactArgs(1),
		RunE:  runRead,
	}

	writeCmd := &cobra.Command{
		Use:   "write <file>",
		Short: "Erase and program the flash from a file",
		Long: `Erase and program the whole flash from an image file.

Words already erased (0xFFFF) are skipped and the chip status is not
polled between words; over USB the inter-packet latency exceeds the
flash's program time, so this is safe and much faster.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(args[0], false)
		},
	}
	writeCmd.Flags().BoolVar(&verifyFlag, "verify", false, "Read back and compare after programming")

	writeslowCmd := &cobra.Command{
		Use:   "writeslow <file>",
		Short: "Like write, but check chip status after each word",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(args[0], true)
		},
	}
	writeslowCmd.Flags().BoolVar(&verifyFlag, "verify", false, "Read back and compare after programming")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show device and flash chip info",
		RunE:  runInfo,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List boards in USB boot mode",
		RunE:  runList,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cx861xx-flash %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(readCmd, writeCmd, writeslowCmd, infoCmd, listCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %q accepts %d arg(s), received %d", errUsage, cmd.Name(), n, len(args))
		}
		return nil
	}
}

func exitCode(err error) int {
	var claimErr *usb.ClaimError
	var fileErr *image.FileError
	var idErr *flash.IdentificationError
	switch {
	case errors.Is(err, usb.ErrNoDevice):
		return exitNoDevice
	case errors.As(err, &claimErr):
		return exitClaim
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.As(err, &fileErr):
		return exitFile
	case errors.As(err, &idErr):
		return exitUnsupportedChip
	}
	return 1
}

// openFlasher opens the first board in USB boot mode and identifies its
// flash chip.
func openFlasher() (*usb.Device, *flasher.Flasher, *flash.Chip, error) {
	dev, err := usb.Open()
	if errors.Is(err, usb.ErrNoDevice) {
		return nil, nil, nil, fmt.Errorf("%w; make sure the board is connected and the processor is in USB boot mode", err)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	fmt.Printf("%s device found at bus %d, address %d\n", dev.Family.Name, dev.Bus, dev.Address)

	f := flasher.New(dev, flasher.Target{
		FlashBase:   dev.Family.FlashBase,
		FlashEnable: dev.Family.FlashEnable,
	})

	chip, err := f.Identify()
	if err != nil {
		dev.Close()
		return nil, nil, nil, err
	}
	fmt.Printf("Flash: %s (mfg 0x%04x, device 0x%04x, %d KB)\n",
		chip.Name, chip.Manufacturer, chip.Device, chip.Size/1024)

	return dev, f, chip, nil
}

func runRead(cmd *cobra.Command, args []string) error {
	dev, f, chip, err := openFlasher()
	if err != nil {
		return err
	}
	defer dev.Close()

	bar := newBar(int(chip.Size)/1024, "Reading")
	f.SetProgressCallback(func(current, total int) {
		bar.Set(current)
	})

	data, err := f.ReadImage()
	if err != nil {
		return err
	}
	bar.Finish()

	if err := image.Save(args[0], data); err != nil {
		return err
	}
	fmt.Printf("\nRead %d bytes into %s\n", len(data), args[0])
	return nil
}

func runWrite(path string, slow bool) error {
	dev, f, chip, err := openFlasher()
	if err != nil {
		return err
	}
	defer dev.Close()

	img, err := image.Load(path, int(chip.Size))
	if err != nil {
		return err
	}
	fmt.Printf("Image: %s (%d bytes)\n", path, len(img))

	bar := newBar(chip.NumBlocks(), "Programming")
	f.SetProgressCallback(func(current, total int) {
		bar.Set(current)
	})

	if err := f.WriteImage(img, slow); err != nil {
		return err
	}
	bar.Finish()
	fmt.Println("\nFlash complete!")

	if verifyFlag {
		vbar := newBar(int(chip.Size)/1024, "Verifying")
		f.SetProgressCallback(func(current, total int) {
			vbar.Set(current)
		})
		if err := f.Verify(img); err != nil {
			return err
		}
		vbar.Finish()
		fmt.Println("\nVerify OK")
	}

	fmt.Println("Done!")
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	dev, f, chip, err := openFlasher()
	if err != nil {
		return err
	}
	defer dev.Close()

	fmt.Printf("  Family:     %s\n", dev.Family.Name)
	fmt.Printf("  Flash base: 0x%08x\n", dev.Family.FlashBase)
	fmt.Printf("  Chip:       %s\n", chip.Name)
	fmt.Printf("  Size:       %d KB in %d blocks\n", chip.Size/1024, chip.NumBlocks())
	if v, err := f.LoaderVersion(); err == nil && len(v) > 0 {
		fmt.Printf("  Loader:     % x\n", v)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	devices, err := usb.List()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No boards in USB boot mode found")
		return nil
	}
	fmt.Printf("Found %d device(s):\n", len(devices))
	for _, d := range devices {
		fmt.Printf("  %s\n", d)
	}
	return nil
}

func newBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
