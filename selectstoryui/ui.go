// Package selectstoryui is a Bubble Tea front end for browsing and
// launching stories from the IF Archive's zcode index, handed to
// cmd/gozm's --browse mode as an alternative to naming a local file.
package selectstoryui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brinkhall/goz/zmachine"
)

type selectStoryState int

var docStyle = lipgloss.NewStyle().Margin(1, 2)

const (
	loadingStoryList selectStoryState = iota
	choosingStory
	downloadingStory
)

type story struct {
	name        string
	releaseDate time.Time
	url         string
	description string
	ifdbEntry   string
	ifwiki      string
}

func (s story) Title() string       { return s.name }
func (s story) Description() string { return s.description }
func (s story) FilterValue() string { return s.name + s.description }

type selectStoryModel struct {
	state                  selectStoryState
	storyList              list.Model
	spinner                spinner.Model
	err                    error
	createApplicationModel func(*zmachine.ZMachine, chan<- string, chan<- zmachine.SaveRestoreResponse, <-chan any, []byte, string) tea.Model
	selectedStoryName      string
	cacheDir               string
}

type storiesDownloadedMsg []list.Item
type downloadedStoryMsg []uint8

type errMsg struct{ error }

func (e errMsg) Error() string { return e.error.Error() }

// NewUIModel builds the story-browser model. createAppModel turns a freshly
// loaded story into the host's own application model (e.g. cmd/gozm's
// uiModel); cacheDir, if non-empty, is where fetched pages and story files
// are cached between runs.
func NewUIModel(createAppModel func(*zmachine.ZMachine, chan<- string, chan<- zmachine.SaveRestoreResponse, <-chan any, []byte, string) tea.Model, cacheDir string) tea.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return selectStoryModel{
		state:                  loadingStoryList,
		storyList:              list.New(make([]list.Item, 0), list.NewDefaultDelegate(), 0, 0),
		createApplicationModel: createAppModel,
		spinner:                s,
		cacheDir:               cacheDir,
	}
}

func (m selectStoryModel) Init() tea.Cmd {
	m.storyList.SetShowTitle(false)
	return fetchStoryList(m.cacheDir)
}

func (m selectStoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			s, selected := m.storyList.SelectedItem().(story)
			if selected {
				m.state = downloadingStory
				m.selectedStoryName = s.name
				return m, fetchStory(s, m.cacheDir)
			}
		}

	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.storyList.SetSize(msg.Width-h, msg.Height-v)

	case storiesDownloadedMsg:
		m.state = choosingStory
		m.storyList.SetShowStatusBar(false)
		m.storyList.SetShowTitle(false)
		return m, m.storyList.SetItems([]list.Item(msg))

	case downloadedStoryMsg:
		return m.launchStory([]byte(msg))

	case errMsg:
		m.err = msg
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.storyList, cmd = m.storyList.Update(msg)
	return m, cmd
}

// launchStory loads the downloaded story bytes into a fresh ZMachine and
// hands off to the host's application model.
func (m selectStoryModel) launchStory(storyBytes []byte) (tea.Model, tea.Cmd) {
	outputChannel := make(chan any)
	inputChannel := make(chan string)
	saveRestoreChannel := make(chan zmachine.SaveRestoreResponse)

	z, err := zmachine.LoadRom(storyBytes, inputChannel, saveRestoreChannel, outputChannel)
	if err != nil {
		m.err = err
		return m, nil
	}

	newModel := m.createApplicationModel(z, inputChannel, saveRestoreChannel, outputChannel, storyBytes, m.selectedStoryName)
	return newModel, newModel.Init()
}

func (m selectStoryModel) View() string {
	if m.err != nil {
		return docStyle.Render(m.err.Error())
	}
	switch m.state {
	case loadingStoryList:
		return fmt.Sprintf("\n\n   %s Loading stories...\n\n", m.spinner.View())
	case choosingStory:
		return docStyle.Render(m.storyList.View())
	case downloadingStory:
		return fmt.Sprintf("\n\n   %s Downloading story...\n\n", m.spinner.View())
	default:
		return ""
	}
}
