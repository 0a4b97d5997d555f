// Command gozm runs a Z-machine story file in a terminal UI, or (with
// --disassemble) prints a TXD-style routine listing and exits without
// starting one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/brinkhall/goz/selectstoryui"
	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zdisasm"
	"github.com/brinkhall/goz/zerrs"
	"github.com/brinkhall/goz/zmachine"
	"github.com/brinkhall/goz/zstring"
)

func main() {
	seed := flag.Int64("seed", 0, "deterministic RNG seed (0 means time-seeded)")
	trace := flag.Bool("trace", false, "log one decoded instruction per step to stderr")
	disassemble := flag.Bool("disassemble", false, "print a routine listing and exit")
	browse := flag.Bool("browse", false, "browse and download stories from the IF Archive instead of opening a local file")
	flag.Parse()

	if *browse {
		runBrowse()
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gozm [--seed N] [--trace] [--disassemble] <story-file>\n       gozm --browse")
		os.Exit(2)
	}
	storyPath := flag.Arg(0)

	storyBytes, err := os.ReadFile(storyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gozm: %v\n", err)
		os.Exit(1)
	}

	if *disassemble {
		core, err := zcore.LoadCore(storyBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gozm: %v\n", err)
			os.Exit(1)
		}
		alphabets, err := zstring.LoadAlphabets(&core)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gozm: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(zdisasm.Listing(zdisasm.Discover(&core, alphabets)))
		return
	}

	outputChannel := make(chan interface{})
	inputChannel := make(chan string)
	saveRestoreChannel := make(chan zmachine.SaveRestoreResponse)

	z, err := zmachine.LoadRom(storyBytes, inputChannel, saveRestoreChannel, outputChannel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gozm: %v\n", err)
		os.Exit(1)
	}
	if *seed != 0 {
		z.SeedRNG(*seed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *trace {
		go runTraced(ctx, z)
	} else {
		go z.Run(ctx)
	}

	model := newModel(z, storyPath, outputChannel, inputChannel, saveRestoreChannel)
	program := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := program.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gozm: %v\n", err)
		os.Exit(1)
	}

	if m, ok := finalModel.(uiModel); ok && m.exitCode != 0 {
		os.Exit(m.exitCode)
	}
}

// runBrowse lets a user pick a story from the IF Archive index instead of
// naming a local file. The picked story's bytes never touch disk except
// through selectstoryui's own on-disk cache.
func runBrowse() {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = ""
	} else {
		cacheDir = filepath.Join(cacheDir, "gozm")
	}

	adapt := func(z *zmachine.ZMachine, in chan<- string, saveRestore chan<- zmachine.SaveRestoreResponse, out <-chan any, romBytes []byte, name string) tea.Model {
		ctx, cancel := context.WithCancel(context.Background())
		go z.Run(ctx)
		m := newModel(z, name, out, in, saveRestore)
		m.cancel = cancel
		return m
	}

	model := selectstoryui.NewUIModel(adapt, cacheDir)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "gozm: %v\n", err)
		os.Exit(1)
	}
}

// runTraced mirrors ZMachine.Run's loop but logs each instruction's
// address and mnemonic to stderr before executing it, using the
// decode-only path zdisasm also relies on so tracing never perturbs
// execution state.
func runTraced(ctx context.Context, z *zmachine.ZMachine) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pc, pcErr := z.CurrentPC()
		if pcErr == nil {
			if inst, err := zmachine.DecodeAt(&z.Core, z.Alphabets, z.Core.Version, pc); err == nil {
				fmt.Fprintf(os.Stderr, "%05x: %s\n", inst.Address, inst.Mnemonic)
			}
		}

		cont, err := z.StepMachine()
		if err != nil {
			return
		}
		if !cont {
			return
		}
	}
}

type saveRequestMsg zmachine.Save
type restoreRequestMsg zmachine.Restore
type statusBarMsg zmachine.StatusBar
type inputRequestMsg zmachine.InputRequest
type runtimeErrorMsg zerrs.RuntimeError
type warningMsg zmachine.Warning
type quitMsg zmachine.Quit
type textMsg string

type uiModel struct {
	z                  *zmachine.ZMachine
	storyPath          string
	outputChannel      <-chan interface{}
	inputChannel       chan<- string
	saveRestoreChannel chan<- zmachine.SaveRestoreResponse

	history  strings.Builder
	status   zmachine.StatusBar
	input    textinput.Model
	waiting  bool
	width    int
	height   int
	exitCode int
	cancel   context.CancelFunc
}

func newModel(z *zmachine.ZMachine, storyPath string, out <-chan interface{}, in chan<- string, saveRestore chan<- zmachine.SaveRestoreResponse) uiModel {
	ti := textinput.New()
	ti.Placeholder = ""
	ti.Focus()
	return uiModel{
		z:                  z,
		storyPath:          storyPath,
		outputChannel:      out,
		inputChannel:       in,
		saveRestoreChannel: saveRestore,
		input:              ti,
		width:              80,
		height:             24,
	}
}

func waitForEvent(out <-chan interface{}) tea.Cmd {
	return func() tea.Msg {
		msg := <-out
		switch v := msg.(type) {
		case string:
			return textMsg(v)
		case zmachine.StatusBar:
			return statusBarMsg(v)
		case zmachine.InputRequest:
			return inputRequestMsg(v)
		case zmachine.Save:
			return saveRequestMsg(v)
		case zmachine.Restore:
			return restoreRequestMsg(v)
		case zerrs.RuntimeError:
			return runtimeErrorMsg(v)
		case zmachine.Warning:
			return warningMsg(v)
		case zmachine.Quit:
			return quitMsg(v)
		default:
			return nil
		}
	}
}

func (m uiModel) Init() tea.Cmd {
	return waitForEvent(m.outputChannel)
}

func (m uiModel) defaultSaveFilename() string {
	ext := filepath.Ext(m.storyPath)
	return strings.TrimSuffix(m.storyPath, ext) + ".qzl"
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		return m, nil

	case tea.KeyMsg:
		switch v.Type {
		case tea.KeyCtrlC:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				text := m.input.Value()
				m.history.WriteString("> " + text + "\n")
				m.input.SetValue("")
				m.waiting = false
				m.inputChannel <- text
				return m, waitForEvent(m.outputChannel)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(v)
		return m, cmd

	case textMsg:
		m.history.WriteString(string(v))
		return m, waitForEvent(m.outputChannel)

	case statusBarMsg:
		m.status = zmachine.StatusBar(v)
		return m, waitForEvent(m.outputChannel)

	case inputRequestMsg:
		m.waiting = true
		return m, waitForEvent(m.outputChannel)

	case saveRequestMsg:
		data, err := m.z.ExportSaveState()
		if err != nil {
			m.saveRestoreChannel <- zmachine.SaveResponse{Success: false}
			return m, waitForEvent(m.outputChannel)
		}
		filename := v.Filename
		if filename == "" {
			filename = m.defaultSaveFilename()
		}
		if err := os.WriteFile(filename, data, 0644); err != nil {
			m.saveRestoreChannel <- zmachine.SaveResponse{Success: false}
		} else {
			m.saveRestoreChannel <- zmachine.SaveResponse{Success: true, Result: 1}
			m.history.WriteString("\n[saved to " + filename + "]\n")
		}
		return m, waitForEvent(m.outputChannel)

	case restoreRequestMsg:
		filename := v.Filename
		if filename == "" {
			filename = m.defaultSaveFilename()
		}
		data, err := os.ReadFile(filename)
		if err != nil {
			m.saveRestoreChannel <- zmachine.RestoreResponse{Success: false}
		} else {
			m.saveRestoreChannel <- zmachine.RestoreResponse{Success: true, Result: 2, Data: data}
			m.history.WriteString("\n[restored from " + filename + "]\n")
		}
		return m, waitForEvent(m.outputChannel)

	case warningMsg:
		return m, waitForEvent(m.outputChannel)

	case runtimeErrorMsg:
		m.history.WriteString(fmt.Sprintf("\n*** runtime error: %s ***\n", zerrs.RuntimeError(v).Error()))
		m.exitCode = 1
		return m, tea.Quit

	case quitMsg:
		return m, tea.Quit

	case nil:
		return m, nil
	}

	return m, nil
}

var statusStyle = lipgloss.NewStyle().Reverse(true)

func (m uiModel) View() string {
	status := fmt.Sprintf(" %-*s Score: %-4d Moves: %-4d", m.width-26, m.status.PlaceName, m.status.Score, m.status.Moves)
	if len(status) > m.width {
		status = status[:m.width]
	}

	wrapped := wordwrap.String(m.history.String(), m.width)
	lines := strings.Split(wrapped, "\n")
	visibleLines := m.height - 3
	if visibleLines < 1 {
		visibleLines = 1
	}
	if len(lines) > visibleLines {
		lines = lines[len(lines)-visibleLines:]
	}

	var b strings.Builder
	b.WriteString(statusStyle.Width(m.width).Render(status))
	b.WriteString("\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n> " + m.input.View())
	return b.String()
}
