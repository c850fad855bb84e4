// Command hsmctl is a diagnostic client for hsmsim-server: it builds a
// handful of common request frames by hand, sends them over a single TCP
// connection, and renders the response frame in a table. It plays the role
// the teacher's obfs4-client played for obfs4 (a minimal driver exercising
// the wire protocol end-to-end), but as a one-shot command-per-invocation
// tool rather than a long-lived proxy, since there is no persistent session
// state to proxy here.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func buildFrame(header []byte, cmd string, payload []byte) []byte {
	body := make([]byte, 0, len(header)+2+len(payload))
	body = append(body, header...)
	body = append(body, []byte(cmd)...)
	body = append(body, payload...)

	out := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(out[:2], uint16(len(body)))
	copy(out[2:], body)
	return out
}

func sendAndReceive(addr string, header []byte, cmd string, payload []byte) ([]byte, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("hsmctl: dial: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(buildFrame(header, cmd, payload)); err != nil {
		return nil, fmt.Errorf("hsmctl: write: %w", err)
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("hsmctl: read length: %w", err)
	}
	length := binary.BigEndian.Uint16(lenBuf[:])

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("hsmctl: read body: %w", err)
	}
	return body, nil
}

// printResponse strips the configured header, then splits response
// code / error code / remaining fields and renders them as a table. hsmctl
// does not know each command's result-field boundaries (that grammar lives
// server-side), so the remainder is shown as a single hex blob.
func printResponse(body []byte, header []byte) {
	rest := body
	if len(header) > 0 && len(rest) >= len(header) {
		rest = rest[len(header):]
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Value"})

	if len(rest) < 2 {
		t.AppendRow(table.Row{"raw", hex.EncodeToString(rest)})
		t.Render()
		return
	}
	t.AppendRow(table.Row{"Response code", string(rest[:2])})
	rest = rest[2:]

	if len(rest) >= 2 {
		t.AppendRow(table.Row{"Error code", string(rest[:2])})
		rest = rest[2:]
	}
	if len(rest) > 0 {
		t.AppendRow(table.Row{"Fields (hex)", hex.EncodeToString(rest)})
	}
	t.Render()
}

func main() {
	var addr, headerStr string

	root := &cobra.Command{
		Use:   "hsmctl",
		Short: "Diagnostic client for hsmsim-server",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:1500", "hsmsim-server address")
	root.PersistentFlags().StringVar(&headerStr, "header", "", "fixed per-deployment frame header")

	ping := &cobra.Command{
		Use:   "ping",
		Short: "Send NC (diagnostics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := sendAndReceive(addr, []byte(headerStr), "NC", []byte("00"))
			if err != nil {
				return err
			}
			printResponse(resp, []byte(headerStr))
			return nil
		},
	}

	var mode, keyType, keyScheme string
	genkey := &cobra.Command{
		Use:   "genkey",
		Short: "Send A0 (generate key)",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := []byte(mode + keyType + keyScheme)
			resp, err := sendAndReceive(addr, []byte(headerStr), "A0", payload)
			if err != nil {
				return err
			}
			printResponse(resp, []byte(headerStr))
			return nil
		},
	}
	genkey.Flags().StringVar(&mode, "mode", "0", "generation mode byte (hsmctl sends no ZMK/TMK, so the key comes back under the LMK only)")
	genkey.Flags().StringVar(&keyType, "key-type", "000", "3-digit key type code")
	genkey.Flags().StringVar(&keyScheme, "key-scheme", "U", "key scheme tag (U/T/S/X)")

	var keyTypeCode, lenFlag, keyHex string
	kcv := &cobra.Command{
		Use:   "kcv",
		Short: "Send BU (key check value)",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := []byte(keyTypeCode + lenFlag)
			if keyHex != "" {
				payload = append(payload, []byte("U"+strings.ToUpper(keyHex))...)
			}
			resp, err := sendAndReceive(addr, []byte(headerStr), "BU", payload)
			if err != nil {
				return err
			}
			printResponse(resp, []byte(headerStr))
			return nil
		},
	}
	kcv.Flags().StringVar(&keyTypeCode, "key-type-code", "00", "2-digit key type code")
	kcv.Flags().StringVar(&lenFlag, "length-flag", "1", "1-digit key length flag")
	kcv.Flags().StringVar(&keyHex, "key", "", "32 hex characters of key-under-LMK ciphertext")

	root.AddCommand(ping, genkey, kcv)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hsmctl:", err)
		os.Exit(1)
	}
}
