package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jarvis-assistant/host/internal/protocol"
	"github.com/jarvis-assistant/host/internal/serial"
)

var (
	serialPort string
	serialBaud int
	serialList bool
)

var serialCmd = &cobra.Command{
	Use:   "serial",
	Short: "Run the host for a device attached over USB serial",
	Long: `Run the host for a device attached over USB serial.

The device multiplexes JSON event lines, JAUD audio frames and its own log
output on one stream. Transcripts and replies are printed to the console.

Examples:
  jarvis serial -p /dev/ttyACM0 -b 115200
  jarvis serial --list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serialList {
			return listPorts()
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Serial.Port = serialPort
		}
		if cmd.Flags().Changed("baud") {
			cfg.Serial.Baud = serialBaud
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := cfg.Log.NewLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pipeline, cleanup, err := buildPipeline(ctx, cfg, logger)
		defer cleanup()
		if err != nil {
			return err
		}

		port, err := serial.Open(ctx, serial.PortConfig{
			Name:      cfg.Serial.Port,
			BaudRate:  cfg.Serial.Baud,
			BootDelay: cfg.Serial.BootDelay,
		}, logger)
		if err != nil {
			return err
		}
		defer port.Close()

		console := serial.NewConsole(os.Stdout, serial.DefaultTheme)
		host := serial.NewHost(protocol.IdleReader{R: port}, pipeline, console, cfg.Audio.UnitTimeout, logger)
		return host.Run(ctx)
	},
}

func listPorts() error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.USB {
			fmt.Printf("%s\tUSB %s:%s\t%s\n", p.Name, p.VID, p.PID, p.Product)
		} else {
			fmt.Println(p.Name)
		}
	}
	return nil
}

func init() {
	serialCmd.Flags().StringVarP(&serialPort, "port", "p", "", "serial port (default from config, /dev/ttyACM0)")
	serialCmd.Flags().IntVarP(&serialBaud, "baud", "b", 0, "baud rate (default from config, 115200)")
	serialCmd.Flags().BoolVar(&serialList, "list", false, "list available serial ports and exit")
}
