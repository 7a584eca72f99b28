package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Fallback markers stored when a field cannot be extracted. A record full of
// these is still a complete record.
const (
	TitleNotFound       = "Title not found"
	ChannelNotFound     = "Channel not found"
	SubscribersNotFound = "Subscribers not found"
	ViewsNotFound       = "Views not found"
	LikesNotFound       = "Likes not found"
	DescriptionNotFound = "Description not found"
)

// Count is an integer that may be unknown.
type Count struct {
	Value int64
	Known bool
}

// KnownCount returns a known count.
func KnownCount(n int64) Count { return Count{Value: n, Known: true} }

// UnknownCount returns the unknown sentinel.
func UnknownCount() Count { return Count{} }

// String renders the count, or the likes sentinel when unknown.
func (c Count) String() string {
	if !c.Known {
		return LikesNotFound
	}
	return strconv.FormatInt(c.Value, 10)
}

// ParseCountString is the inverse of String. Anything that is not a base-10
// integer decodes as unknown.
func ParseCountString(s string) Count {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return UnknownCount()
	}
	return KnownCount(n)
}

// MarshalJSON encodes a known count as a JSON number and an unknown one as
// the sentinel string.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return json.Marshal(LikesNotFound)
	}
	return []byte(strconv.FormatInt(c.Value, 10)), nil
}

// UnmarshalJSON accepts a number, a string, or null.
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = UnknownCount()
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ParseCountString(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("decode count %s: %w", data, err)
	}
	*c = KnownCount(n)
	return nil
}

// VideoRecord holds the metadata extracted from one watch page.
type VideoRecord struct {
	Title               string    `json:"title"`
	Channel             string    `json:"channel"`
	SubscriberCountText string    `json:"subscribers"`
	ViewCountText       string    `json:"views"`
	LikeCount           Count     `json:"likes"`
	Description         string    `json:"description"`
	ScrapedAt           time.Time `json:"scraped_at"`
	URL                 string    `json:"url,omitempty"`
}

// NewVideoRecord returns a record with every text field set to its
// fallback marker.
func NewVideoRecord(url string) VideoRecord {
	return VideoRecord{
		Title:               TitleNotFound,
		Channel:             ChannelNotFound,
		SubscriberCountText: SubscribersNotFound,
		ViewCountText:       ViewsNotFound,
		LikeCount:           UnknownCount(),
		Description:         DescriptionNotFound,
		URL:                 url,
	}
}

// Harvest is the result of one harvest: the record plus the ordered comment
// bodies. Comments is never nil.
type Harvest struct {
	Video    VideoRecord `json:"video_info"`
	Comments []string    `json:"comments"`
}

// NewHarvest returns a harvest with an empty, non-nil comment list.
func NewHarvest(video VideoRecord, comments []string) *Harvest {
	if comments == nil {
		comments = []string{}
	}
	return &Harvest{Video: video, Comments: comments}
}
