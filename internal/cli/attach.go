package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mweinbach/cowork/logger"
	"github.com/mweinbach/cowork/store"
	"github.com/mweinbach/cowork/transport"
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to the session server and chat from the terminal",
	RunE:  runAttach,
}

func runAttach(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("cli")

	var st *store.Store
	printer := newPrinter(os.Stdout)

	st = store.New(nil, store.WithOnChange(func() {
		printer.flush(st.Snapshot())
	}))

	conn, err := transport.Dial(transport.Options{
		URL:          cfg.ServerURL,
		OnEvent:      st.HandleEvent,
		Reconnect:    true,
		ReconnectMin: cfg.ReconnectMin(),
		ReconnectMax: cfg.ReconnectMax(),
		OnStatus: func(status transport.Status) {
			st.SetConnectionStatus(store.ConnStatus(status))
		},
	})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.ServerURL, err)
	}
	defer conn.Close()
	st.SetSend(conn.Send)

	if cfg.DefaultProvider != "" && cfg.DefaultModel != "" {
		// Applied once the handshake lands; harmless before it.
		st.SetModel(cfg.DefaultProvider, cfg.DefaultModel)
	}

	log.Info("attached", "url", cfg.ServerURL)
	fmt.Fprintln(os.Stdout, "connected, type a message or /help")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runSlashCommand(st, line); quit {
				return nil
			}
			continue
		}
		snap := st.Snapshot()
		switch {
		case snap.PendingAsk != nil:
			st.AnswerAsk(line)
		case snap.PendingApproval != nil:
			fmt.Fprintln(os.Stderr, "respond to the approval with /yes or /no first")
		default:
			if !st.SendMessage(line) {
				fmt.Fprintln(os.Stderr, "not connected to a session yet")
			}
		}
	}
	return scanner.Err()
}

// runSlashCommand dispatches a local command line. Returns true when
// the user asked to quit.
func runSlashCommand(st *store.Store, line string) bool {
	fields := strings.Fields(line)
	cmd, rest := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println(`commands:
  /reset                 clear the conversation
  /cancel                interrupt the running turn
  /model <provider> <m>  switch model
  /mcp on|off            toggle MCP tools
  /tools                 refresh the tool list
  /commands              refresh the command list
  /yes /no               resolve a pending approval
  /quit                  leave`)
	case "/reset":
		st.Reset()
	case "/cancel":
		st.Cancel()
	case "/tools":
		st.RefreshTools()
	case "/commands":
		st.RefreshCommands()
	case "/model":
		if len(rest) != 2 {
			fmt.Println("usage: /model <provider> <model>")
			return false
		}
		st.SetModel(rest[0], rest[1])
	case "/mcp":
		if len(rest) != 1 || (rest[0] != "on" && rest[0] != "off") {
			fmt.Println("usage: /mcp on|off")
			return false
		}
		st.SetEnableMCP(rest[0] == "on")
	case "/yes":
		st.RespondApproval(true)
	case "/no":
		st.RespondApproval(false)
	default:
		// Anything else is a server-side slash command.
		name := strings.TrimPrefix(cmd, "/")
		st.ExecuteCommand(name, strings.Join(rest, " "))
	}
	return false
}
