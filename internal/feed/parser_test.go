package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Aviation News</title>
    <item>
      <title><![CDATA[Pushback Nedir]]></title>
      <link>https://x.com/a</link>
      <description><![CDATA[Ground handling explained.]]></description>
    </item>
    <item>
      <title>No Link Item</title>
      <description>dropped</description>
    </item>
    <item>
      <title>Second Story</title>
      <link>https://x.com/b</link>
    </item>
  </channel>
</rss>`

const atomSample = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Aviation</title>
  <entry>
    <title>Runway Incursions</title>
    <link rel="alternate" href="https://atom.example/runway"/>
    <summary>A look at incursion statistics.</summary>
  </entry>
  <entry>
    <title>Content Only</title>
    <link rel="alternate" href="https://atom.example/content"/>
    <content type="html">&lt;p&gt;Body text.&lt;/p&gt;</content>
  </entry>
</feed>`

func TestParse_RSSItems(t *testing.T) {
	p := NewParser(15)

	items, err := p.Parse(rssSample)
	require.NoError(t, err)
	require.Len(t, items, 2, "item without link must be dropped")

	assert.Equal(t, "Pushback Nedir", items[0].Title)
	assert.Equal(t, "https://x.com/a", items[0].Link)
	assert.Equal(t, "Ground handling explained.", items[0].Summary, "CDATA wrapping must be stripped")

	assert.Equal(t, "Second Story", items[1].Title)
	assert.Empty(t, items[1].Summary)
}

func TestParse_AtomEntries(t *testing.T) {
	p := NewParser(15)

	items, err := p.Parse(atomSample)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Runway Incursions", items[0].Title)
	assert.Equal(t, "https://atom.example/runway", items[0].Link)
	assert.Equal(t, "A look at incursion statistics.", items[0].Summary)

	// Summary falls back to the content body.
	assert.Equal(t, "<p>Body text.</p>", items[1].Summary)
}

func TestParse_CapsItemCount(t *testing.T) {
	p := NewParser(1)

	items, err := p.Parse(rssSample)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "Pushback Nedir", items[0].Title)
}

func TestParse_RejectsGarbage(t *testing.T) {
	p := NewParser(15)

	_, err := p.Parse("this is not a feed")
	assert.Error(t, err)
}
