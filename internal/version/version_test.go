package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)
	assert.Equal(t, "syftbackup", AppName)

	assert.Contains(t, Short(), Version)
	assert.True(t, strings.HasPrefix(ShortWithApp(), AppName+" "))
	assert.Contains(t, Detailed(), "/")
	assert.True(t, strings.HasPrefix(DetailedWithApp(), AppName+" "))
}

func TestApplyBuildInfo(t *testing.T) {
	origVersion, origRevision, origBuildDate := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = origVersion, origRevision, origBuildDate
	})

	t.Run("fills defaults", func(t *testing.T) {
		Version, Revision, BuildDate = devVersion, "HEAD", ""
		applyBuildInfo("v9.9.9", map[string]string{
			"vcs.revision": "abcdef1234567890",
			"vcs.modified": "true",
			"vcs.time":     "2025-12-12T01:00:00Z",
		})
		assert.Equal(t, "9.9.9", Version)
		assert.Equal(t, "abcdef1234567890-dirty", Revision)
		assert.Equal(t, "2025-12-12T01:00:00Z", BuildDate)
	})

	t.Run("ldflags win", func(t *testing.T) {
		Version, Revision, BuildDate = "1.2.3", "deadbeef", "from-ldflags"
		applyBuildInfo("v9.9.9", map[string]string{
			"vcs.revision": "abcdef",
			"vcs.time":     "2025-12-12T01:00:00Z",
		})
		assert.Equal(t, "1.2.3", Version)
		assert.Equal(t, "deadbeef", Revision)
		assert.Equal(t, "from-ldflags", BuildDate)
	})

	t.Run("devel main version ignored", func(t *testing.T) {
		Version, Revision, BuildDate = devVersion, "HEAD", ""
		applyBuildInfo("(devel)", map[string]string{})
		assert.Equal(t, devVersion, Version)
		assert.Equal(t, "HEAD", Revision)
	})
}
