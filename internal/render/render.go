// Package render formats tasks for the terminal. It consumes task values
// only; nothing here touches the store.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/amirbrooks/taskman/internal/task"
)

type Options struct {
	NoColor bool
	// Now anchors the overdue highlight; zero means time.Now.
	Now time.Time
}

var (
	styleTodo       = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	stylePriorityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	stylePriorityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	stylePriorityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	stylePriorityUrgent = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	styleOverdue = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleDim     = lipgloss.NewStyle().Faint(true)
)

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now().UTC()
	}
	return o.Now
}

func (o Options) status(s task.Status) string {
	if o.NoColor {
		return string(s)
	}
	switch s {
	case task.StatusTodo:
		return styleTodo.Render(string(s))
	case task.StatusInProgress:
		return styleInProgress.Render(string(s))
	case task.StatusDone:
		return styleDone.Render(string(s))
	default:
		return string(s)
	}
}

func (o Options) priority(p task.Priority) string {
	if o.NoColor {
		return string(p)
	}
	switch p {
	case task.PriorityLow:
		return stylePriorityLow.Render(string(p))
	case task.PriorityMedium:
		return stylePriorityMedium.Render(string(p))
	case task.PriorityHigh:
		return stylePriorityHigh.Render(string(p))
	case task.PriorityUrgent:
		return stylePriorityUrgent.Render(string(p))
	default:
		return string(p)
	}
}

func (o Options) due(t task.Task) string {
	if t.DueDate == "" {
		return "-"
	}
	today := o.now().Format("2006-01-02")
	if !o.NoColor && t.Status != task.StatusDone && t.DueDate < today {
		return styleOverdue.Render(t.DueDate)
	}
	return t.DueDate
}

// Table writes the task list as an aligned table.
func Table(w io.Writer, tasks []task.Task, opts Options) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRI\tDUE\tTAGS\tTITLE")
	for _, t := range tasks {
		tags := "-"
		if len(t.Tags) > 0 {
			tags = strings.Join(t.Tags, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ShortID(), opts.status(t.Status), opts.priority(t.Priority), opts.due(t), tags, t.Title)
	}
	_ = tw.Flush()
}

// Detail writes a single task in full.
func Detail(w io.Writer, t task.Task, opts Options) {
	fmt.Fprintln(w, t.Title)
	fmt.Fprintln(w, "ID:", t.ID)
	fmt.Fprintln(w, "Status:", opts.status(t.Status))
	fmt.Fprintln(w, "Priority:", opts.priority(t.Priority))
	if t.DueDate != "" {
		fmt.Fprintln(w, "Due:", opts.due(t))
	}
	if len(t.Tags) > 0 {
		fmt.Fprintln(w, "Tags:", strings.Join(t.Tags, ", "))
	}
	fmt.Fprintln(w, "Created:", t.CreatedAt.Format(time.RFC3339))
	fmt.Fprintln(w, "Updated:", t.UpdatedAt.Format(time.RFC3339))
	if t.CompletedAt != nil {
		fmt.Fprintln(w, "Completed:", t.CompletedAt.Format(time.RFC3339))
	}
	if t.RemoteID != "" {
		fmt.Fprintln(w, "Remote:", t.RemoteID)
	}
	if strings.TrimSpace(t.Description) != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.TrimRight(t.Description, "\n"))
	}
}

// Markdown renders the list as a checklist, done tasks checked.
func Markdown(tasks []task.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		mark := " "
		if t.Status == task.StatusDone {
			mark = "x"
		}
		b.WriteString(fmt.Sprintf("- [%s] %s", mark, t.Title))
		var extra []string
		if t.DueDate != "" {
			extra = append(extra, "due "+t.DueDate)
		}
		if t.Priority != task.PriorityMedium {
			extra = append(extra, string(t.Priority))
		}
		if len(extra) > 0 {
			b.WriteString(" (" + strings.Join(extra, ", ") + ")")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Stats summarizes the collection by status and priority.
type Stats struct {
	Total      int
	ByStatus   map[task.Status]int
	ByPriority map[task.Priority]int
	Overdue    int
}

func Summarize(tasks []task.Task, now time.Time) Stats {
	s := Stats{
		ByStatus:   map[task.Status]int{},
		ByPriority: map[task.Priority]int{},
	}
	today := now.UTC().Format("2006-01-02")
	for _, t := range tasks {
		s.Total++
		s.ByStatus[t.Status]++
		s.ByPriority[t.Priority]++
		if t.DueDate != "" && t.DueDate < today && t.Status != task.StatusDone {
			s.Overdue++
		}
	}
	return s
}

func WriteStats(w io.Writer, s Stats, opts Options) {
	fmt.Fprintf(w, "Total: %d\n\n", s.Total)
	for _, status := range task.Statuses() {
		fmt.Fprintf(w, "  %s\t%d\n", opts.status(status), s.ByStatus[status])
	}
	fmt.Fprintln(w)
	for _, p := range task.Priorities() {
		fmt.Fprintf(w, "  %s\t%d\n", opts.priority(p), s.ByPriority[p])
	}
	if s.Overdue > 0 {
		line := fmt.Sprintf("\nOverdue: %d", s.Overdue)
		if !opts.NoColor {
			line = "\n" + styleOverdue.Render(fmt.Sprintf("Overdue: %d", s.Overdue))
		}
		fmt.Fprintln(w, line)
	} else if s.Total > 0 {
		if opts.NoColor {
			fmt.Fprintln(w, "\nNothing overdue")
		} else {
			fmt.Fprintln(w, "\n"+styleDim.Render("Nothing overdue"))
		}
	}
}
