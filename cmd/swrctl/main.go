package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/dougsko/swrmeter/pkg/client"
	"github.com/dougsko/swrmeter/pkg/display"
	"github.com/dougsko/swrmeter/pkg/protocol"
)

var (
	socketPath = flag.StringP("socket", "s", "/tmp/swrmeter.sock", "Unix socket path")
	command    = flag.String("cmd", "", "Command to send (e.g., 'STATUS', 'BAND:20')")
	raw        = flag.Bool("json", false, "Print the raw JSON response")
	watch      = flag.DurationP("watch", "w", 0, "Repeat READING at this interval")
)

func main() {
	flag.Parse()

	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	c := client.NewSocketClient(*socketPath)

	if *watch > 0 {
		watchReadings(c, *watch)
		return
	}

	if *command == "" {
		if flag.NArg() > 0 {
			*command = strings.Join(flag.Args(), " ")
		} else {
			showHelp()
			return
		}
	}

	if !*raw {
		if done, err := pretty(c, *command); done {
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	response, err := c.SendCommand(*command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", response.String())
	if !response.Success {
		os.Exit(1)
	}
}

// pretty prints the commands that have a human form. It reports false for
// anything it does not format.
func pretty(c *client.SocketClient, cmd string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(cmd)) {
	case protocol.CmdStatus:
		status, err := c.GetStatus()
		if err != nil {
			return true, err
		}
		fmt.Printf("swrmeterd %s, up %s (since %s)\n", status.Version, status.Uptime, humanize.Time(status.StartTime))
		fmt.Printf("Profile:      %s\n", status.Profile)
		fmt.Printf("Transmitting: %v\n", status.Transmitting)
		if status.CIVEnabled {
			band := status.Band
			if band == "" {
				band = "unknown"
			}
			fmt.Printf("Band:         %s\n", band)
			if status.RadioStale {
				fmt.Printf("Radio:        not responding\n")
			} else {
				fmt.Printf("Radio:        %s\n", display.FrequencyText(status.FrequencyHz))
			}
		} else {
			fmt.Printf("Radio:        CI-V disabled\n")
		}
		return true, nil

	case protocol.CmdReading:
		r, err := c.GetReading()
		if err != nil {
			return true, err
		}
		printReading(r)
		return true, nil

	case protocol.CmdHistory:
		rows, err := c.GetHistory(0)
		if err != nil {
			return true, err
		}
		if len(rows) == 0 {
			fmt.Println("No transmissions recorded")
			return true, nil
		}
		for _, t := range rows {
			fmt.Printf("%-16s %-8s %-12s %8s PEP %8s avg  VSWR %-6s (max %s)\n",
				humanize.Time(t.StartedAt),
				t.Duration().Round(time.Second),
				display.FrequencyText(t.FrequencyHz),
				display.PowerText(t.PEPWatts),
				display.PowerText(t.AvgWatts),
				display.VSWRText(t.VSWR),
				display.VSWRText(t.MaxVSWR))
		}
		return true, nil
	}
	return false, nil
}

func printReading(r *client.Reading) {
	state := "RX"
	if r.Transmitting {
		state = "TX"
	}
	fmt.Printf("%s  net %-8s peak %-8s PEP %-8s VSWR %-6s %5.1f dBm  supply %.1f V\n",
		state,
		display.PowerText(r.Reading.Net),
		display.PowerText(r.Reading.Peak),
		display.PowerText(r.Reading.PEP),
		display.VSWRText(r.Reading.VSWR),
		r.Reading.DBm,
		r.SupplyVolts)
}

func watchReadings(c *client.SocketClient, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		r, err := c.GetReading()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printReading(r)
		<-ticker.C
	}
}

func showHelp() {
	fmt.Println("swrctl - SWR/Power Meter Daemon Control Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options] <command>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  STATUS                    Get daemon status")
	fmt.Println("  READING                   Get the latest reading")
	fmt.Println("  PROFILE[:<name>]          Get or set the averaging profile")
	fmt.Println("  RESET                     Clear the peak holds")
	fmt.Println("  BAND[:<name>|:next]       Get the bands or select one")
	fmt.Println("  FREQUENCY:<hz>            Set the radio frequency")
	fmt.Println("  POWER:<percent>           Set the radio RF power")
	fmt.Println("  TUNE                      Start the radio's tuner")
	fmt.Println("  OPTIONS[:get]             Show the stored options")
	fmt.Println("  OPTIONS:set:<key>:<value> Change one stored option")
	fmt.Println("  HISTORY[:<n>|:band:<b>]   List recorded transmissions")
	fmt.Println("  RADIO                     Get the CI-V radio status")
	fmt.Println("  PING                      Test connection")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s STATUS\n", os.Args[0])
	fmt.Printf("  %s BAND:20\n", os.Args[0])
	fmt.Printf("  %s OPTIONS:set:weight:400\n", os.Args[0])
	fmt.Printf("  %s --watch 500ms\n", os.Args[0])
	fmt.Printf("  echo 'READING' | nc -U /tmp/swrmeter.sock\n")
}
