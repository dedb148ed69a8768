// Package gallery holds the album rules: who uploaded a file, in what order
// files are shown, how far the guest has scrolled and where the lightbox
// moves on a key press. Everything here is pure; the media service feeds it
// provider listings.
package gallery

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/gosimple/slug"

	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/storage"
)

const (
	// PageSize is both the initial number of items shown and the step of
	// "load more".
	PageSize = 9

	DefaultUploader = "Guest"
	maxUploaderLen  = 30

	dateLayout = "January 2, 2006"
)

var lettersOnly = regexp.MustCompile(`^[A-Za-z]+$`)

// Filter narrows the album to one media type.
type Filter string

const (
	FilterAll   Filter = "all"
	FilterPhoto Filter = "photo"
	FilterVideo Filter = "video"
)

// ParseFilter accepts "", all, photo and video.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPhoto, FilterVideo:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q", s)
	}
}

// InferUploader reads the guest name encoded as the file name prefix before
// the first underscore, or the whole name when there is none. Anything that
// is not a plain run of fewer than 30 letters is attributed to "Guest".
func InferUploader(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	if len(prefix) >= maxUploaderLen || !lettersOnly.MatchString(prefix) {
		return DefaultUploader
	}
	return prefix
}

// Assets converts a provider listing into album items of type t.
func Assets(files []storage.File, t model.MediaType) []model.MediaAsset {
	out := make([]model.MediaAsset, 0, len(files))
	for _, f := range files {
		out = append(out, model.MediaAsset{
			ID:           f.ID,
			Name:         f.Name,
			Type:         t,
			ThumbnailURL: f.ThumbnailURL,
			PreviewURL:   f.ViewURL,
			DownloadURL:  f.DownloadURL,
			CreatedAt:    f.CreatedAt,
			Uploader:     InferUploader(f.Name),
		})
	}
	return out
}

// Merge combines the lists newest first. Ties keep photos before videos.
func Merge(photos, videos []model.MediaAsset) []model.MediaAsset {
	all := make([]model.MediaAsset, 0, len(photos)+len(videos))
	all = append(all, photos...)
	all = append(all, videos...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all
}

// Apply keeps the items matching f, preserving order.
func Apply(items []model.MediaAsset, f Filter) []model.MediaAsset {
	if f == FilterAll || f == "" {
		return items
	}
	out := make([]model.MediaAsset, 0, len(items))
	for _, it := range items {
		if string(it.Type) == string(f) {
			out = append(out, it)
		}
	}
	return out
}

// Group is the items created on one calendar day.
type Group struct {
	Date  string             `json:"date"`
	Items []model.MediaAsset `json:"items"`
}

// Page is the visible part of the album.
type Page struct {
	Groups     []Group            `json:"groups"`
	Items      []model.MediaAsset `json:"items"`
	Total      int                `json:"total"`
	Loaded     int                `json:"loaded"`
	HasMore    bool               `json:"hasMore"`
	NextLoaded int                `json:"nextLoaded"`
}

// ClampLoaded turns a requested count into a valid one: non-positive means
// the first page.
func ClampLoaded(loaded int) int {
	if loaded <= 0 {
		return PageSize
	}
	return loaded
}

// Paginate takes the first loaded items and groups them by day in loc.
func Paginate(items []model.MediaAsset, loaded int, loc *time.Location) Page {
	loaded = ClampLoaded(loaded)
	visible := items
	if len(visible) > loaded {
		visible = visible[:loaded]
	}

	p := Page{
		Groups:  GroupByDate(visible, loc),
		Items:   visible,
		Total:   len(items),
		Loaded:  len(visible),
		HasMore: len(items) > loaded,
	}
	p.NextLoaded = loaded
	if p.HasMore {
		p.NextLoaded = loaded + PageSize
	}
	return p
}

// GroupByDate buckets items by calendar date, in order of first appearance.
func GroupByDate(items []model.MediaAsset, loc *time.Location) []Group {
	if loc == nil {
		loc = time.UTC
	}
	groups := []Group{}
	index := make(map[string]int)
	for _, it := range items {
		day := it.CreatedAt.In(loc).Format(dateLayout)
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, Group{Date: day})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// Lightbox keys.
const (
	KeyLeft   = "ArrowLeft"
	KeyRight  = "ArrowRight"
	KeyEscape = "Escape"
)

// Navigate moves the lightbox over n visible items. Left and right wrap
// around; Escape closes it. Any other key leaves it where it is.
func Navigate(index, n int, key string) (next int, open bool, err error) {
	if n <= 0 {
		return 0, false, fmt.Errorf("nothing to preview")
	}
	if index < 0 || index >= n {
		return 0, false, fmt.Errorf("index %d out of range [0,%d)", index, n)
	}
	switch key {
	case KeyRight:
		return (index + 1) % n, true, nil
	case KeyLeft:
		return (index - 1 + n) % n, true, nil
	case KeyEscape:
		return index, false, nil
	default:
		return index, true, nil
	}
}

// UploaderTag is the guest's full name with all whitespace removed.
func UploaderTag(fullName string) string {
	tag := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, fullName)
	if tag == "" {
		return DefaultUploader
	}
	return tag
}

// UploadName builds the stored file name {Uploader}_{slug}{ext}, so the
// album can attribute the file later.
func UploadName(fullName, filename string) string {
	filename = path.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(path.Ext(filename))
	base := slug.Make(strings.TrimSuffix(filename, path.Ext(filename)))
	if base == "" {
		base = "upload"
	}
	return UploaderTag(fullName) + "_" + base + ext
}
