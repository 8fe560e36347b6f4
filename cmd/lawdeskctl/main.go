package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matheus3301/lawdesk/internal/api"
	"github.com/matheus3301/lawdesk/internal/lock"
	"github.com/matheus3301/lawdesk/internal/store"
	"github.com/matheus3301/lawdesk/internal/workspace"
)

type options struct {
	json     bool
	limit    int
	archived bool
	hard     bool
	within   string
}

func main() {
	workspaceFlag := flag.String("workspace", "", "workspace name (overrides config default)")
	callerFlag := flag.String("caller", os.Getenv("USER"), "caller id sent to the daemon")
	roleFlag := flag.String("role", "admin", "caller role sent to the daemon")
	var opts options
	flag.BoolVar(&opts.json, "json", false, "output in JSON format")
	flag.IntVar(&opts.limit, "limit", 50, "page size for history")
	flag.BoolVar(&opts.archived, "archived", false, "include archived conversations")
	flag.BoolVar(&opts.hard, "hard", false, "delete messages along with the conversation")
	flag.StringVar(&opts.within, "in", "", "restrict search to one conversation")
	flag.Parse()

	name := workspace.Resolve(*workspaceFlag)
	if err := workspace.ValidateName(name); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c, err := api.New(workspace.SocketPath(name))
	if err != nil {
		fail(fmt.Errorf("cannot connect to daemon for workspace %q: %w", name, err))
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctx = api.WithCaller(ctx, *callerFlag, *roleFlag)

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, name, opts)
	case "conversations", "ls":
		cmdConversations(ctx, c, opts)
	case "history":
		need(args, 2, "history <conversation>")
		cmdHistory(ctx, c, args[1], opts)
	case "search":
		need(args, 2, "search <query>")
		cmdSearch(ctx, c, strings.Join(args[1:], " "), opts)
	case "archive", "unarchive":
		need(args, 2, args[0]+" <conversation>")
		resp, err := c.ArchiveConversation(ctx, &api.ArchiveConversationRequest{Conversation: args[1], Archived: args[0] == "archive"})
		check(err)
		output(opts, resp, func() { fmt.Printf("%sd %s\n", args[0], resp.ConversationID) })
	case "delete":
		need(args, 2, "delete [-hard] <conversation>")
		resp, err := c.DeleteConversation(ctx, &api.DeleteConversationRequest{Conversation: args[1], Hard: opts.hard})
		check(err)
		output(opts, resp, func() { fmt.Printf("deleted %s\n", resp.ConversationID) })
	case "assign":
		need(args, 3, "assign <conversation-id> <lawyer-id> [title]")
		cs := store.Case{ConversationID: args[1], LawyerID: args[2], Title: strings.Join(args[3:], " ")}
		resp, err := c.AssignCase(ctx, &api.AssignCaseRequest{Case: cs})
		check(err)
		output(opts, resp, func() { fmt.Printf("case %s assigned to %s\n", resp.CaseID, cs.LawyerID) })
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: lawdeskctl [-workspace <name>] [-caller <id>] [-role <role>] [-json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                         Show daemon and store status")
	fmt.Fprintln(os.Stderr, "  conversations [-archived]      List visible conversations")
	fmt.Fprintln(os.Stderr, "  history [-limit n] <conv>      Show a conversation's messages")
	fmt.Fprintln(os.Stderr, "  search [-in <conv>] <query>    Full-text search")
	fmt.Fprintln(os.Stderr, "  archive|unarchive <conv>       Toggle archived flag")
	fmt.Fprintln(os.Stderr, "  delete [-hard] <conv>          Delete a conversation")
	fmt.Fprintln(os.Stderr, "  assign <conv> <lawyer> [title] Link a case to a lawyer")
}

func cmdStatus(ctx context.Context, c *api.Client, name string, opts options) {
	resp, err := c.GetStatus(ctx, &api.GetStatusRequest{})
	check(err)
	output(opts, resp, func() {
		fmt.Printf("Workspace: %s\n", resp.Workspace)
		if pid, err := lock.Holder(workspace.Dir(name)); err == nil {
			fmt.Printf("PID:       %d\n", pid)
		}
		fmt.Printf("Store:     %s (since %s)\n", resp.StoreState, time.UnixMilli(resp.StoreSinceMs).Format(time.RFC3339))
		fmt.Printf("Breaker:   %s\n", resp.Breaker)
		fmt.Printf("Connector: %v %s\n", resp.Connector, resp.PhoneNumber)
		fmt.Printf("Uptime:    %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).String())
		fmt.Printf("Cached:    %d identities\n", resp.CachedIdentities)
		fmt.Printf("Dropped:   %d events\n", resp.DroppedEvents)
	})
}

func cmdConversations(ctx context.Context, c *api.Client, opts options) {
	resp, err := c.ListConversations(ctx, &api.ListConversationsRequest{IncludeArchived: opts.archived})
	check(err)
	output(opts, resp, func() {
		if len(resp.Conversations) == 0 {
			fmt.Println("No conversations.")
			return
		}
		for _, conv := range resp.Conversations {
			flags := ""
			if conv.Archived {
				flags += " [archived]"
			}
			if conv.Muted {
				flags += " [muted]"
			}
			fmt.Printf("%-36s %-8s %-30s unread=%d%s\n", conv.ID, conv.Kind, conv.Name, conv.UnreadCount, flags)
		}
	})
}

func cmdHistory(ctx context.Context, c *api.Client, conv string, opts options) {
	resp, err := c.GetHistory(ctx, &api.GetHistoryRequest{Conversation: conv, Limit: opts.limit})
	check(err)
	output(opts, resp, func() { printMessages(resp.Messages) })
}

func cmdSearch(ctx context.Context, c *api.Client, query string, opts options) {
	resp, err := c.Search(ctx, &api.SearchRequest{Query: query, Conversation: opts.within})
	check(err)
	output(opts, resp, func() { printMessages(resp.Messages) })
}

func printMessages(msgs []store.Message) {
	if len(msgs) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range msgs {
		edited := ""
		if m.IsEdited {
			edited = " (edited)"
		}
		fmt.Printf("%s  %-20s %s%s\n", time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04"), m.SenderName, m.Content, edited)
	}
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: lawdeskctl %s\n", usage)
		os.Exit(1)
	}
}

func check(err error) {
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func output(opts options, v any, text func()) {
	if !opts.json {
		text()
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
