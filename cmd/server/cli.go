package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var cliCmd = &cobra.Command{
	Use:   "cli [command] [args...]",
	Short: "Send one command to a running kvsrv server and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCLI,
}

var cliHost string
var cliPort int

func init() {
	cliCmd.Flags().StringVar(&cliHost, "host", "127.0.0.1", "server host")
	cliCmd.Flags().IntVar(&cliPort, "port", 6380, "server port")
}

func runCLI(_ *cobra.Command, args []string) error {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", cliHost, cliPort))
	if err != nil {
		return fmt.Errorf("connecting to %s:%d: %w", cliHost, cliPort, err)
	}
	defer conn.Close()

	line := strings.Join(args, " ") + "\n"
	if _, err := conn.Write([]byte(line)); err != nil {
		return fmt.Errorf("sending command: %w", err)
	}

	reader := bufio.NewReader(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		resp, err := reader.ReadString('\n')
		if resp != "" {
			fmt.Print(resp)
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading reply: %w", err)
			}
			break
		}
	}
	return nil
}
