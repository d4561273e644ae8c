// Package fallback holds the curated, network-free photo catalog used when no
// live provider can supply images, and the cuisine classifier that picks a
// catalog bucket from free text.
package fallback

import (
	"fmt"
	"strings"

	"github.com/fleveque/restaurant-images/internal/model"
)

// Bucket is a closed set of catalog sections.
type Bucket string

const (
	Italian       Bucket = "italian"
	Japanese      Bucket = "japanese"
	Mexican       Bucket = "mexican"
	Chinese       Bucket = "chinese"
	Thai          Bucket = "thai"
	Indian        Bucket = "indian"
	French        Bucket = "french"
	Mediterranean Bucket = "mediterranean"
	Korean        Bucket = "korean"
	American      Bucket = "american"
	General       Bucket = "general"
)

// AllBuckets lists every bucket, General last.
var AllBuckets = []Bucket{
	Italian, Japanese, Mexican, Chinese, Thai, Indian,
	French, Mediterranean, Korean, American, General,
}

// keywordTable is checked top to bottom; the first bucket with a matching
// keyword wins. Order matters: "korean bbq steak" is Korean, not American.
var keywordTable = []struct {
	bucket   Bucket
	keywords []string
}{
	{Italian, []string{"italian", "pizza", "pasta"}},
	{Japanese, []string{"japan", "sushi", "ramen"}},
	{Mexican, []string{"mexic", "taco", "burrito"}},
	{Chinese, []string{"chinese", "dim sum", "szechuan"}},
	{Thai, []string{"thai"}},
	{Indian, []string{"indian", "curry"}},
	{French, []string{"french"}},
	{Mediterranean, []string{"greek", "mediterranean"}},
	{Korean, []string{"korean", "bbq"}},
	{American, []string{"american", "burger", "steak"}},
}

// Classify maps free text (a cuisine tag or a whole query) onto a bucket by
// case-insensitive substring match. Unmatched text maps to General.
func Classify(text string) Bucket {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return General
	}
	for _, row := range keywordTable {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				return row.bucket
			}
		}
	}
	return General
}

// catalogURLs are Unsplash photos picked per cuisine. Every bucket has at
// least three entries.
var catalogURLs = map[Bucket][]string{
	Italian: {
		"https://images.unsplash.com/photo-1555396273-367ea4eb4db5",
		"https://images.unsplash.com/photo-1498579397066-22750a3cb424",
		"https://images.unsplash.com/photo-1534649643822-e7431de08af6",
		"https://images.unsplash.com/photo-1579684947550-22e945225d9a",
	},
	Japanese: {
		"https://images.unsplash.com/photo-1611143669185-af224c5e3252",
		"https://images.unsplash.com/photo-1580822184713-fc5400e7fe10",
		"https://images.unsplash.com/photo-1579871494447-9811cf80d66c",
		"https://images.unsplash.com/photo-1617196034183-421b4917c92d",
	},
	Mexican: {
		"https://images.unsplash.com/photo-1584314465196-31db4a57b2d9",
		"https://images.unsplash.com/photo-1615870216519-2f9fa575fa5c",
		"https://images.unsplash.com/photo-1599974579688-8dbdd335c77f",
		"https://images.unsplash.com/photo-1551504734-5ee1c4a1479b",
	},
	Chinese: {
		"https://images.unsplash.com/photo-1563245372-f21724e3856d",
		"https://images.unsplash.com/photo-1567529692333-de9fd6772897",
		"https://images.unsplash.com/photo-1518983546435-91f8b87fe561",
		"https://images.unsplash.com/photo-1548943487-a2e4e43b4853",
	},
	Thai: {
		"https://images.unsplash.com/photo-1604020126714-86c81f9403a0?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1567982047351-76b6f93e9942?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1562565652-a0d8f0c59eb4?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1562565651-7d4948f339f5?w=800&auto=format&fit=crop",
	},
	Indian: {
		"https://images.unsplash.com/photo-1585937421612-70a008356c36?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1517244683847-7456b63c5969?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1593252726954-ae843734c079?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1561626423-a51b45aef0a1?w=800&auto=format&fit=crop",
	},
	French: {
		"https://images.unsplash.com/photo-1550507992-eb63ffee0847",
		"https://images.unsplash.com/photo-1551782450-a2132b4ba21d",
		"https://images.unsplash.com/photo-1600891964599-f61ba0e24092",
		"https://images.unsplash.com/photo-1605300045234-d0582c116871",
	},
	Mediterranean: {
		"https://images.unsplash.com/photo-1550547660-d9450f859349?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1579684947550-22e945225d9a?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1530554764233-e79e16c91d08?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1517254456976-ee8682099819?w=800&auto=format&fit=crop",
	},
	Korean: {
		"https://images.unsplash.com/photo-1598214886806-c87b84b7078b?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1583592643761-bf2ecd0e6f84?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1598866594230-a7c12756260f?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1632756916135-f90a196a6e97?w=800&auto=format&fit=crop",
	},
	American: {
		"https://images.unsplash.com/photo-1555992336-fb0d29498b13?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1555992457-b8fefdd46da2?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1544510806-7daec3d252cf?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1615937657715-bc7b4b7962c1?w=800&auto=format&fit=crop",
	},
	General: {
		"https://images.unsplash.com/photo-1552566626-52f8b828add9?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1517248135467-4c7edcad34c4?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1559339352-11d035aa65de?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1414235077428-338989a2e8c0?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1559305616-3f99cd43e353?w=800&auto=format&fit=crop",
		"https://images.unsplash.com/photo-1528605248644-14dd04022da1?w=800&auto=format&fit=crop",
	},
}

// Catalog serves curated images per bucket. The zero value is not usable;
// call NewCatalog.
type Catalog struct {
	entries map[Bucket][]model.ImageResult
}

// NewCatalog builds the catalog from the built-in photo table.
func NewCatalog() *Catalog {
	entries := make(map[Bucket][]model.ImageResult, len(catalogURLs))
	for bucket, urls := range catalogURLs {
		title := fmt.Sprintf("%s restaurant", displayName(bucket))
		list := make([]model.ImageResult, 0, len(urls))
		for _, u := range urls {
			list = append(list, model.ImageResult{
				Title:         title,
				ImageLink:     u,
				ThumbnailLink: thumbnailOf(u),
				ContextLink:   "#",
				Source:        model.SourceFallback,
			})
		}
		entries[bucket] = list
	}
	return &Catalog{entries: entries}
}

// Images returns exactly n images for bucket, cycling the bucket's entries
// when n exceeds them. Unknown buckets fall back to General.
func (c *Catalog) Images(bucket Bucket, n int) []model.ImageResult {
	if n <= 0 {
		return []model.ImageResult{}
	}
	pool, ok := c.entries[bucket]
	if !ok || len(pool) == 0 {
		pool = c.entries[General]
	}

	out := make([]model.ImageResult, n)
	for i := range out {
		out[i] = pool[i%len(pool)]
	}
	return out
}

// ForText classifies text and returns n images from the matching bucket.
func (c *Catalog) ForText(text string, n int) []model.ImageResult {
	return c.Images(Classify(text), n)
}

// Size returns how many distinct entries a bucket holds.
func (c *Catalog) Size(bucket Bucket) int {
	return len(c.entries[bucket])
}

func displayName(b Bucket) string {
	s := string(b)
	return strings.ToUpper(s[:1]) + s[1:]
}

// thumbnailOf asks the Unsplash image CDN for a 200px rendition.
func thumbnailOf(u string) string {
	if strings.Contains(u, "?") {
		return strings.Replace(u, "w=800", "w=200", 1)
	}
	return u + "?w=200&auto=format&fit=crop"
}
