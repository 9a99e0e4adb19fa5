// Command dispatchtop is a small terminal dashboard that polls a
// PoolExecutor's PoolStats and renders live running/queued/ceiling bars.
// It is purely a consumer of the public dispatch API — it never reaches
// into Task Store internals — and exists to exercise the dashboard-style
// stack (bubbletea/lipgloss) the rest of the retrieval pack already
// depends on, the category of "example program" the core spec places out
// of scope for the library itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/dispatchkit/dispatch/core"
)

var (
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	frameStyle = lipgloss.NewStyle().Padding(1, 2).Border(lipgloss.RoundedBorder())
)

type tickMsg time.Time

type model struct {
	pool     *core.PoolExecutor
	stats    core.PoolStats
	interval time.Duration
}

func (m model) Init() tea.Cmd {
	return tick(m.interval)
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.stats = m.pool.Stats()
		return m, tick(m.interval)
	}
	return m, nil
}

func (m model) View() tea.View {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", labelStyle.Render("dispatchtop — "+m.stats.Name))
	fmt.Fprintf(&b, "workers  %s\n", bar(m.stats.Size, m.stats.Size, 30))
	fmt.Fprintf(&b, "running  %s\n", bar(m.stats.Running, m.stats.Ceiling, 30))
	fmt.Fprintf(&b, "queued   %d\n", m.stats.Queued)
	fmt.Fprintf(&b, "\n%s", lipgloss.NewStyle().Faint(true).Render("press q to quit"))
	return tea.NewView(frameStyle.Render(b.String()))
}

func bar(value, max, width int) string {
	if max <= 0 {
		max = 1
	}
	filled := value * width / max
	if filled > width {
		filled = width
	}
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}

func main() {
	workers := flag.Int("workers", 4, "pool worker count")
	demo := flag.Bool("demo", true, "submit synthetic jitter load while the dashboard runs")
	flag.Parse()

	pool := core.NewPoolExecutor("dispatchtop-demo", *workers)
	defer pool.Teardown()

	if *demo {
		go generateLoad(pool)
	}

	m := model{pool: pool, interval: 200 * time.Millisecond}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

func generateLoad(pool *core.PoolExecutor) {
	for {
		pool.Async(func(ctx context.Context) {
			time.Sleep(time.Duration(50+rand.Intn(300)) * time.Millisecond)
		}, core.DefaultTaskTraits())
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)
	}
}
