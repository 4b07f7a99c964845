package confluence

import "time"

// links holds the _links object of REST responses.
type links struct {
	Next     string `json:"next"`
	WebUI    string `json:"webui"`
	Download string `json:"download"`
	Self     string `json:"self"`
}

type space struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type spaceList struct {
	Results []space `json:"results"`
	Size    int     `json:"size"`
	Links   links   `json:"_links"`
}

type version struct {
	When   time.Time `json:"when"`
	Number int       `json:"number"`
}

type history struct {
	CreatedDate time.Time `json:"createdDate"`
	LastUpdated *version  `json:"lastUpdated"`
}

type storage struct {
	Value string `json:"value"`
}

type body struct {
	Storage storage `json:"storage"`
}

// fileInfo carries the media type and upload comment of an attachment.
// Cloud reports them under metadata, Server under extensions.
type fileInfo struct {
	MediaType string `json:"mediaType"`
	Comment   string `json:"comment"`
}

type content struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Title      string    `json:"title"`
	Space      *space    `json:"space"`
	History    *history  `json:"history"`
	Version    *version  `json:"version"`
	Body       *body     `json:"body"`
	Metadata   *fileInfo `json:"metadata"`
	Extensions *fileInfo `json:"extensions"`
	Links      links     `json:"_links"`
}

type contentList struct {
	Results []content `json:"results"`
	Size    int       `json:"size"`
	Links   links     `json:"_links"`
}

// lastModified returns the time of the latest version.
func (c content) lastModified() time.Time {
	switch {
	case c.Version != nil && !c.Version.When.IsZero():
		return c.Version.When.UTC()
	case c.History != nil && c.History.LastUpdated != nil && !c.History.LastUpdated.When.IsZero():
		return c.History.LastUpdated.When.UTC()
	case c.History != nil:
		return c.History.CreatedDate.UTC()
	default:
		return time.Time{}
	}
}

func (c content) fileInfo() fileInfo {
	var info fileInfo
	for _, src := range []*fileInfo{c.Metadata, c.Extensions} {
		if src == nil {
			continue
		}
		if info.MediaType == "" {
			info.MediaType = src.MediaType
		}
		if info.Comment == "" {
			info.Comment = src.Comment
		}
	}
	return info
}
