package selectstoryui

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

const catalogURL = "https://www.ifarchive.org/indexes/if-archive/games/zcode/"
const cacheDuration = 7 * 24 * time.Hour

var zcodeExtension = regexp.MustCompile(`\.z[12345678]$`)
var releaseDatePattern = regexp.MustCompile(`\d{2}-\w{3}-\d{4}`)

// cacheFilePath maps a cache key (a story URL, or the literal "storylist")
// to a path under cacheDir, keyed by content hash so URLs with odd
// characters never need escaping.
func cacheFilePath(cacheDir, key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(cacheDir, hex.EncodeToString(hash[:]))
}

func isCacheValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < cacheDuration
}

// cachedStoryList is the on-disk JSON form of a fetched catalogue page.
type cachedStoryList struct {
	Stories []cachedStory `json:"stories"`
}

type cachedStory struct {
	Name        string    `json:"name"`
	ReleaseDate time.Time `json:"release_date"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	IFDBEntry   string    `json:"ifdb_entry"`
	IFWiki      string    `json:"ifwiki"`
}

// fetchStory downloads (or serves from cache) a single story's bytes.
func fetchStory(s story, cacheDir string) tea.Cmd {
	return func() tea.Msg {
		if cacheDir != "" {
			cachePath := cacheFilePath(cacheDir, s.url)
			if isCacheValid(cachePath) {
				if data, err := os.ReadFile(cachePath); err == nil {
					return downloadedStoryMsg(data)
				}
			}
		}

		client := &http.Client{Timeout: 60 * time.Second}
		res, err := client.Get(s.url)
		if err != nil {
			return errMsg{err}
		}
		defer res.Body.Close() //nolint:errcheck

		storyBytes, err := io.ReadAll(res.Body)
		if err != nil {
			return errMsg{err}
		}

		if cacheDir != "" {
			if err := os.MkdirAll(cacheDir, 0755); err == nil {
				os.WriteFile(cacheFilePath(cacheDir, s.url), storyBytes, 0644) //nolint:errcheck
			}
		}

		return downloadedStoryMsg(storyBytes)
	}
}

// fetchStoryList downloads (or serves from cache) the catalogue page and
// scrapes it into a list of list.Item values, in the catalogue page's own
// order (the list is not sorted).
func fetchStoryList(cacheDir string) tea.Cmd {
	return func() tea.Msg {
		if cacheDir != "" {
			if stories, ok := loadCachedStoryList(cacheDir); ok {
				return storiesDownloadedMsg(stories)
			}
		}

		client := &http.Client{Timeout: 10 * time.Second}
		res, err := client.Get(catalogURL)
		if err != nil {
			return errMsg{err}
		}
		defer res.Body.Close() //nolint:errcheck
		if res.StatusCode != http.StatusOK {
			return errMsg{}
		}

		doc, err := goquery.NewDocumentFromReader(res.Body)
		if err != nil {
			return errMsg{err}
		}

		stories := scrapeStories(doc)

		if cacheDir != "" {
			saveCachedStoryList(cacheDir, stories)
		}

		return storiesDownloadedMsg(stories)
	}
}

func loadCachedStoryList(cacheDir string) ([]list.Item, bool) {
	cachePath := cacheFilePath(cacheDir, "storylist")
	if !isCacheValid(cachePath) {
		return nil, false
	}
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}
	var cached cachedStoryList
	if json.Unmarshal(data, &cached) != nil {
		return nil, false
	}
	stories := make([]list.Item, 0, len(cached.Stories))
	for _, cs := range cached.Stories {
		stories = append(stories, story{
			name:        cs.Name,
			releaseDate: cs.ReleaseDate,
			url:         cs.URL,
			description: cs.Description,
			ifdbEntry:   cs.IFDBEntry,
			ifwiki:      cs.IFWiki,
		})
	}
	return stories, true
}

func saveCachedStoryList(cacheDir string, stories []list.Item) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return
	}
	var cached cachedStoryList
	for _, item := range stories {
		s := item.(story)
		cached.Stories = append(cached.Stories, cachedStory{
			Name:        s.name,
			ReleaseDate: s.releaseDate,
			URL:         s.url,
			Description: s.description,
			IFDBEntry:   s.ifdbEntry,
			IFWiki:      s.ifwiki,
		})
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	os.WriteFile(cacheFilePath(cacheDir, "storylist"), data, 0644) //nolint:errcheck
}

// scrapeStories walks the archive's <dl><dt> listing: each <dt> names a
// story file, and the <dd> entries up to the next <dt> carry its release
// date, description, and IFDB/IFWiki links.
func scrapeStories(doc *goquery.Document) []list.Item {
	var stories []list.Item

	doc.Find("dl dt").Each(func(_ int, s *goquery.Selection) {
		title := strings.Replace(s.Find("a").Text(), "◆", "", 1)
		href, _ := s.Find("a").Attr("href")
		if !zcodeExtension.MatchString(href) {
			return
		}

		rawTimeString := s.Find("span").Text()
		releaseDate, _ := time.Parse("02-Jan-2006", releaseDatePattern.FindString(rawTimeString))

		var description, ifdbEntry, ifwiki string
		s.NextUntil("dt").Each(func(_ int, s2 *goquery.Selection) {
			switch {
			case strings.Contains(s2.Text(), "IFDB"):
				ifdbEntry, _ = s2.Find("a").Attr("href")
			case strings.Contains(s2.Text(), "IFWiki"):
				ifwiki, _ = s2.Find("a").Attr("href")
			case len(s2.ChildrenFiltered("p").Nodes) == 1:
				description = s2.Find("p").Text()
			}
		})

		stories = append(stories, story{
			name:        title,
			releaseDate: releaseDate,
			url:         "https://www.ifarchive.org" + href,
			description: description,
			ifwiki:      ifwiki,
			ifdbEntry:   ifdbEntry,
		})
	})

	return stories
}
