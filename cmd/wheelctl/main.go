// Command wheelctl is the flag-driven one-shot CLI plus a Bubble Tea live
// dashboard for the associative memory engine, all against one
// engine.Engine constructed from config.Load().
//
// Grounded on internal/cli/ui/ui.go for the Bubble Tea Model/Init/Update/View
// shape and lipgloss styling, and on its clipboard.WriteAll and gopsutil
// cpu/mem call sites for copy-id and sysinfo.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	psutilcpu "github.com/shirou/gopsutil/v3/cpu"
	psutilmem "github.com/shirou/gopsutil/v3/mem"

	"wheelermem/internal/config"
	"wheelermem/pkg/memory/ca"
	"wheelermem/pkg/memory/engine"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}
	eng, err := engine.New(cfg)
	if err != nil {
		fatalf("construct engine: %v", err)
	}
	defer eng.Close()

	cmd, args := os.Args[1], os.Args[2:]
	ctx := context.Background()

	switch cmd {
	case "store":
		runStore(ctx, eng, args)
	case "batch-store":
		runBatchStore(ctx, eng, args)
	case "recall":
		runRecall(ctx, eng, args)
	case "list":
		runList(ctx, eng, args)
	case "inspect":
		runInspect(ctx, eng, args)
	case "watch":
		runWatch(eng)
	case "sysinfo":
		runSysinfo()
	case "copy-id":
		runCopyID(ctx, eng, args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `wheelctl <command> [flags]

commands:
  store <text>            store text as a new attractor
  batch-store              store one memory per line of stdin via the
                           configured gpubackend.Backend
  recall <text>           recall the top matching memories
  list                     list stored memories
  inspect <id>             show a stored memory's brick: verdict, ticks, frame count
  watch                    live chunk/temperature dashboard
  sysinfo                  CPU/RAM headroom before a large batch store
  copy-id <text>           store text, copy its id to the clipboard`)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "wheelctl: "+format+"\n", args...)
	os.Exit(1)
}

func runStore(ctx context.Context, eng *engine.Engine, args []string) {
	fs := flag.NewFlagSet("store", flag.ExitOnError)
	chunk := fs.String("chunk", "", "chunk override (default: routed by keyword)")
	fs.Parse(args)
	text := strings.Join(fs.Args(), " ")
	if text == "" {
		fatalf("store: missing text")
	}

	res, err := eng.Store(ctx, text, *chunk)
	if err != nil {
		fatalf("store: %v", err)
	}
	fmt.Printf("id=%s chunk=%s state=%s ticks=%d rotation=%d attempts=%d (%s)\n",
		res.ID, res.Chunk, res.State, res.Ticks, res.RotationUsed, res.Attempts, res.WallTime)
}

func runBatchStore(ctx context.Context, eng *engine.Engine, args []string) {
	fs := flag.NewFlagSet("batch-store", flag.ExitOnError)
	chunk := fs.String("chunk", "", "chunk override (default: routed by keyword)")
	fs.Parse(args)

	scanner := bufio.NewScanner(os.Stdin)
	var texts []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		fatalf("batch-store: reading stdin: %v", err)
	}
	if len(texts) == 0 {
		fatalf("batch-store: no input on stdin")
	}

	results, err := eng.BatchStore(ctx, texts, *chunk)
	if err != nil {
		fatalf("batch-store: %v", err)
	}
	converged := 0
	for i, r := range results {
		if r.State == ca.Converged {
			converged++
		}
		fmt.Printf("%d. id=%s state=%s ticks=%d\n", i+1, r.ID, r.State, r.Ticks)
	}
	fmt.Printf("%d/%d converged\n", converged, len(results))
}

func runRecall(ctx context.Context, eng *engine.Engine, args []string) {
	fs := flag.NewFlagSet("recall", flag.ExitOnError)
	topK := fs.Int("top-k", 0, "number of results (default: engine default)")
	chunk := fs.String("chunk", "", "chunk override (default: routed by keyword)")
	boost := fs.Float64("boost", 0, "temperature boost weight")
	reconstruct := fs.Bool("reconstruct", false, "re-evolve a blend of query and stored attractor")
	alpha := fs.Float64("alpha", 0, "reconstruction blend weight (default: engine default)")
	fs.Parse(args)
	text := strings.Join(fs.Args(), " ")
	if text == "" {
		fatalf("recall: missing text")
	}

	results, err := eng.Recall(ctx, text, engine.RecallOptions{
		TopK:             *topK,
		Chunk:            *chunk,
		TemperatureBoost: *boost,
		Reconstruct:      *reconstruct,
		Alpha:            *alpha,
	})
	if err != nil {
		fatalf("recall: %v", err)
	}
	if len(results) == 0 {
		fmt.Println("no matches")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%s] %.4f (temp=%.3f/%s) %s: %q\n", i+1, r.ID[:8], r.EffectiveSimilarity, r.Temperature, r.Tier, r.Chunk, r.Text)
		if *reconstruct {
			fmt.Printf("     reconstruction: stored=%.4f query=%.4f state=%s\n", r.CorrelationWithStored, r.CorrelationWithQuery, r.ReconstructionState)
		}
	}
}

func runList(ctx context.Context, eng *engine.Engine, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	chunk := fs.String("chunk", "", "limit to one chunk")
	fs.Parse(args)

	entries, err := eng.ListMemories(ctx, *chunk)
	if err != nil {
		fatalf("list: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("no memories stored")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %-12s hits=%-4d %s  %q\n", e.ID[:8], e.Chunk, e.HitCount, e.State, truncate(e.Text, 60))
	}
}

func runInspect(ctx context.Context, eng *engine.Engine, args []string) {
	if len(args) != 1 {
		fatalf("inspect: expected exactly one id")
	}
	b, err := eng.InspectBrick(ctx, args[0])
	if err != nil {
		fatalf("inspect: %v", err)
	}
	fmt.Printf("verdict=%s ticks=%d frames=%d\n", b.Verdict, b.Ticks, len(b.History))
}

func runCopyID(ctx context.Context, eng *engine.Engine, args []string) {
	text := strings.Join(args, " ")
	if text == "" {
		fatalf("copy-id: missing text")
	}
	res, err := eng.Store(ctx, text, "")
	if err != nil {
		fatalf("copy-id: %v", err)
	}
	if err := clipboard.WriteAll(res.ID); err != nil {
		fatalf("copy-id: clipboard: %v", err)
	}
	fmt.Printf("copied %s to clipboard\n", res.ID)
}

func runSysinfo() {
	percents, err := psutilcpu.Percent(200*time.Millisecond, false)
	if err != nil || len(percents) == 0 {
		fatalf("sysinfo: cpu: %v", err)
	}
	vm, err := psutilmem.VirtualMemory()
	if err != nil {
		fatalf("sysinfo: mem: %v", err)
	}
	fmt.Printf("CPU: %.1f%%\nRAM: %.1f%% used (%.1f GiB / %.1f GiB)\n",
		percents[0], vm.UsedPercent,
		float64(vm.Used)/(1<<30), float64(vm.Total)/(1<<30))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// --- watch dashboard ---

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#34D399")).
			Padding(0, 2).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Italic(true)

	copyNoticeStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#10B981")).
				Foreground(lipgloss.Color("#FFFFFF")).
				Padding(0, 2).
				Bold(true)
)

const detailWidth = 72

// memoryItem adapts an engine.EntrySummary to bubbles/list's list.Item.
type memoryItem struct{ entry engine.EntrySummary }

func (i memoryItem) Title() string {
	return fmt.Sprintf("%s  %-12s hits=%-4d", i.entry.ID[:8], i.entry.Chunk, i.entry.HitCount)
}
func (i memoryItem) Description() string { return truncate(i.entry.Text, 60) }
func (i memoryItem) FilterValue() string { return i.entry.Text }

type tickMsg time.Time

type watchModel struct {
	eng    *engine.Engine
	list   list.Model
	err    error
	notice string
}

func newWatchModel(eng *engine.Engine) watchModel {
	l := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	l.Title = "stored memories"
	return watchModel{eng: eng, list: l}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(refresh(m.eng), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func refresh(eng *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		entries, err := eng.ListMemories(context.Background(), "")
		return refreshedMsg{entries: entries, err: err}
	}
}

type refreshedMsg struct {
	entries []engine.EntrySummary
	err     error
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			if sel, ok := m.list.SelectedItem().(memoryItem); ok {
				m.notice = ""
				if err := clipboard.WriteAll(sel.entry.ID); err == nil {
					m.notice = "copied " + sel.entry.ID[:8] + " to clipboard"
				}
			}
			return m, nil
		}
	case tickMsg:
		return m, tea.Batch(refresh(m.eng), tick())
	case refreshedMsg:
		m.err = msg.err
		items := make([]list.Item, len(msg.entries))
		for i, e := range msg.entries {
			items[i] = memoryItem{entry: e}
		}
		cmd := m.list.SetItems(items)
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf(" wheelctl watch — %d memories ", len(m.list.Items()))))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("error: %v\n", m.err))
	}
	b.WriteString(m.list.View())
	if sel, ok := m.list.SelectedItem().(memoryItem); ok {
		b.WriteString("\n")
		b.WriteString(ansi.Wordwrap(sel.entry.Text, detailWidth, " \t"))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(copyNoticeStyle.Render(m.notice) + "\n")
	}
	b.WriteString(footerStyle.Render("q to quit, c to copy the selected id, refreshes every second"))
	return b.String()
}

func runWatch(eng *engine.Engine) {
	p := tea.NewProgram(newWatchModel(eng))
	if _, err := p.Run(); err != nil {
		fatalf("watch: %v", err)
	}
}
