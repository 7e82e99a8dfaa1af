package cloudscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/core"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://example.com/folder", "report.pdf", "https://example.com/folder/report.pdf"},
		{"https://example.com/folder/", "report.pdf", "https://example.com/folder/report.pdf"},
		{"https://example.com/folder/index.html", "report.pdf", "https://example.com/folder/report.pdf"},
		{"https://example.com/a/b", "/root.pdf", "https://example.com/root.pdf"},
		{"https://example.com", "x.pdf", "https://example.com/x.pdf"},
		{"https://example.com/f", "https://cdn.example.com/y.pdf", "https://cdn.example.com/y.pdf"},
	}
	for _, tt := range tests {
		got, err := resolve(tt.base, tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s + %s", tt.base, tt.ref)
	}
}

func TestGuessFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", guessFileName("https://example.com/a/report.pdf?x=1"))
	assert.Equal(t, "my report.pdf", guessFileName("https://example.com/my%20report.pdf"))
	assert.Equal(t, fallbackName, guessFileName("https://example.com/"))
	assert.Equal(t, fallbackName, guessFileName("::"))
}

func TestParseHTMLListing_MailRuScripts(t *testing.T) {
	body := []byte(`
		<script>
			window.__NUXT__ = {state: {list: [
				{name: 'folder-report.pdf', href: '/public/example/folder/folder-report.pdf'},
				{name: 'another.pdf', href: "\/public\/example\/folder\/another.pdf"},
				{name: 'elsewhere.pdf', href: '/private/elsewhere.pdf'}
			]}};
		</script>`)

	resources, err := parseHTMLListing("https://cloud.mail.ru/public/example/folder", body)
	require.NoError(t, err)

	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"folder-report.pdf", "another.pdf"}, names)
	assert.Equal(t, "https://cloud.mail.ru/public/example/folder/another.pdf", resources[1].URL)
}

func TestParseHTMLListing_ScriptsIgnoredElsewhere(t *testing.T) {
	body := []byte(`<script>var f = '/public/a.pdf';</script>`)
	_, err := parseHTMLListing("https://example.com/share", body)
	assert.ErrorIs(t, err, core.ErrCloudScan)
}

func TestIsYandexDisk(t *testing.T) {
	assert.True(t, isYandexDisk("https://disk.yandex.ru/d/abc"))
	assert.True(t, isYandexDisk("https://yadi.sk/d/abc"))
	assert.False(t, isYandexDisk("https://cloud.mail.ru/public/x"))
	assert.False(t, isYandexDisk("https://notdisk.yandex.ru.evil.com/"))
}
