package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/lpc55-isp/internal/config"
	"github.com/bigbag/lpc55-isp/internal/isp"
	"github.com/bigbag/lpc55-isp/internal/logging"
	"github.com/bigbag/lpc55-isp/internal/protocol"
	"github.com/bigbag/lpc55-isp/internal/serial"
	"github.com/bigbag/lpc55-isp/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFlag   string
	portFlag     string
	baudFlag     int
	timeoutFlag  time.Duration
	verboseFlag  bool
	enterISPFlag bool
	outputFlag   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lpc55-isp",
		Short: "Provision and flash LPC55 devices over the ROM ISP UART",
		Long: `lpc55-isp talks to the LPC55 ROM bootloader over a serial port.

It erases and programs flash, reads and writes memory, loads secure-boot
(SB2) files and drives PUF key provisioning: enrollment, unique device
secret generation, user keys and key store management.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFlag, "config", "c", "", "YAML configuration file")
	pf.StringVarP(&portFlag, "port", "p", "", "Serial port")
	pf.IntVarP(&baudFlag, "baud", "b", 57600, "Baud rate")
	pf.DurationVar(&timeoutFlag, "timeout", 5*time.Second, "Per-packet read timeout")
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Log every protocol phase")
	pf.BoolVar(&enterISPFlag, "enter-isp", false, "Reset into ISP mode via DTR/RTS before the command")

	eraseCmd := &cobra.Command{
		Use:   "erase-all",
		Short: "Erase all internal flash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *isp.Client, _ *transport.Conn) error {
				fmt.Println("Erasing flash...")
				if err := c.FlashEraseAll(); err != nil {
					return err
				}
				fmt.Println("Flash erased")
				return nil
			})
		},
	}

	readCmd := &cobra.Command{
		Use:   "read-memory <address> <count>",
		Short: "Read device memory",
		Long: `Read <count> bytes starting at <address>. Numbers accept 0x prefixes.

The data is written to --output, or hex-dumped to stdout.`,
		Args: cobra.ExactArgs(2),
		RunE: runReadMemory,
	}
	readCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write data to file instead of stdout")

	writeCmd := &cobra.Command{
		Use:   "write-memory <address> <file>",
		Short: "Write a binary file to device memory",
		Args:  cobra.ExactArgs(2),
		RunE:  runWriteMemory,
	}

	sbCmd := &cobra.Command{
		Use:   "receive-sb-file <file.sb2>",
		Short: "Load a secure-boot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0], "SB file")
			if err != nil {
				return err
			}
			return withClient(cmd, func(c *isp.Client, conn *transport.Conn) error {
				bar := newProgressBar(len(data), "Loading")
				conn.SetProgressCallback(func(current, total int) { bar.Set(current) })
				if err := c.ReceiveSbFile(data); err != nil {
					return err
				}
				bar.Finish()
				fmt.Println("\nSB file processed")
				return nil
			})
		},
	}

	enrollCmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll the PUF and create a new activation code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *isp.Client, _ *transport.Conn) error {
				if err := c.Enroll(); err != nil {
					return err
				}
				fmt.Println("PUF enrolled")
				return nil
			})
		},
	}

	udsCmd := &cobra.Command{
		Use:   "generate-uds",
		Short: "Generate the unique device secret in the PUF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *isp.Client, _ *transport.Conn) error {
				if err := c.GenerateUDS(); err != nil {
					return err
				}
				fmt.Println("UDS generated")
				return nil
			})
		},
	}

	userKeyCmd := &cobra.Command{
		Use:   "set-user-key <type> <keyfile>",
		Short: "Wrap a user key with the PUF",
		Long: `Wrap the key in <keyfile> with the PUF and store it in the <type> slot.

Key types: SBKEK, PRINCE0, PRINCE1, PRINCE2, USERKEK, UDS.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyType, err := protocol.ParseKeyType(args[0])
			if err != nil {
				return err
			}
			key, err := readInput(args[1], "key file")
			if err != nil {
				return err
			}
			return withClient(cmd, func(c *isp.Client, _ *transport.Conn) error {
				if err := c.SetUserKey(keyType, key); err != nil {
					return err
				}
				fmt.Printf("%s key set (%d bytes)\n", keyType, len(key))
				return nil
			})
		},
	}

	writeKeyStoreCmd := &cobra.Command{
		Use:   "write-keystore <file>",
		Short: "Load a key store image into the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0], "key store file")
			if err != nil {
				return err
			}
			return withClient(cmd, func(c *isp.Client, _ *transport.Conn) error {
				if err := c.WriteKeyStore(data); err != nil {
					return err
				}
				fmt.Printf("Key store written (%d bytes)\n", len(data))
				return nil
			})
		},
	}

	saveKeyStoreCmd := &cobra.Command{
		Use:   "save-keystore",
		Short: "Persist the key store to internal flash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *isp.Client, _ *transport.Conn) error {
				if err := c.SaveKeyStore(); err != nil {
					return err
				}
				fmt.Println("Key store saved")
				return nil
			})
		},
	}

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the ROM bootloader responds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(_ *isp.Client, conn *transport.Conn) error {
				resp, err := conn.Ping()
				if err != nil {
					return err
				}
				fmt.Printf("Bootloader: %s (options 0x%04X)\n", resp.Version(), resp.Options)
				return nil
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the device into its application via RTS",
		Args:  cobra.NoArgs,
		RunE:  runReset,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lpc55-isp %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	rootCmd.AddCommand(
		eraseCmd, readCmd, writeCmd, sbCmd,
		enrollCmd, udsCmd, userKeyCmd, writeKeyStoreCmd, saveKeyStoreCmd,
		pingCmd, resetCmd, versionCmd, listCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the config file, environment and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portFlag
	}
	if flags.Changed("baud") {
		cfg.Baud = baudFlag
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeoutFlag
	}
	if flags.Changed("enter-isp") {
		cfg.EnterISP = enterISPFlag
	}

	if cfg.Port == "" {
		return nil, fmt.Errorf("no serial port given, use --port or %s", config.EnvPort)
	}
	return cfg, cfg.Validate()
}

// withClient opens the configured port and runs fn with a client on it.
func withClient(cmd *cobra.Command, fn func(c *isp.Client, conn *transport.Conn) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer := logging.New(cfg.Log, verboseFlag)
	defer closer.Close()

	port, err := serial.Open(cfg.Port, cfg.Baud)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer port.Close()

	logger.Info("port open", "port", port.PortName(), "baud", port.BaudRate())

	if cfg.EnterISP {
		if err := port.EnterISP(); err != nil {
			return fmt.Errorf("failed to enter ISP mode: %w", err)
		}
	}

	conn := transport.New(port,
		transport.WithTimeout(cfg.Timeout),
		transport.WithMaxPacketSize(cfg.MaxPacketSize),
		transport.WithLogger(logger),
	)

	if err := fn(isp.New(conn, logger), conn); err != nil {
		logger.Error("command failed", "command", cmd.Name(), "error", err)
		return err
	}
	return nil
}

func runReadMemory(cmd *cobra.Command, args []string) error {
	address, err := parseUint32(args[0], "address")
	if err != nil {
		return err
	}
	count, err := parseUint32(args[1], "count")
	if err != nil {
		return err
	}

	return withClient(cmd, func(c *isp.Client, conn *transport.Conn) error {
		bar := newProgressBar(int(count), "Reading")
		conn.SetProgressCallback(func(current, total int) { bar.Set(current) })

		data, err := c.ReadMemory(address, count)
		if err != nil {
			return err
		}
		bar.Finish()

		if outputFlag != "" {
			if err := os.WriteFile(outputFlag, data, 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Printf("\nRead %d bytes from 0x%08X into %s\n", len(data), address, outputFlag)
			return nil
		}

		fmt.Println()
		fmt.Print(hex.Dump(data))
		return nil
	})
}

func runWriteMemory(cmd *cobra.Command, args []string) error {
	address, err := parseUint32(args[0], "address")
	if err != nil {
		return err
	}
	data, err := readInput(args[1], "data file")
	if err != nil {
		return err
	}

	return withClient(cmd, func(c *isp.Client, conn *transport.Conn) error {
		fmt.Printf("Writing %d bytes at 0x%08X...\n", len(data), address)
		bar := newProgressBar(len(data), "Writing")
		conn.SetProgressCallback(func(current, total int) { bar.Set(current) })

		if err := c.WriteMemory(address, data); err != nil {
			return err
		}
		bar.Finish()
		fmt.Println("\nWrite complete")
		return nil
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	port, err := serial.Open(cfg.Port, cfg.Baud)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer port.Close()

	if err := port.HardReset(); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	fmt.Printf("Device on %s reset\n", port.PortName())
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	return nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func readInput(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	return data, nil
}

func parseUint32(s, name string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return uint32(v), nil
}
