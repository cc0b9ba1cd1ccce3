package version

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCurrentVersion(t *testing.T) {
	old, oldDev := Version, DevVersion
	defer func() { Version, DevVersion = old, oldDev }()
	Version = "1.2.3"
	DevVersion = "1.3.0-dev"

	assert.Equal(t, "1.3.0-dev", GetCurrentVersion("dev"))
	assert.Equal(t, "1.3.0-dev", GetCurrentVersion("demo"))
	assert.Equal(t, "1.2.3", GetCurrentVersion("prod"))
}

func TestGetMinorVersion(t *testing.T) {
	assert.Equal(t, "0.25", GetMinorVersion("0.25.1"))
	assert.Equal(t, "1.0", GetMinorVersion("1.0.0"))
	assert.Equal(t, "", GetMinorVersion("notaversion"))
}

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	assert.True(t, IsVersionGreaterOrEqualThan("1.2.0", "1.1.0"))
	assert.True(t, IsVersionGreaterOrEqualThan("1.1.0", "1.1.0"))
	assert.False(t, IsVersionGreaterOrEqualThan("1.0.0", "1.1.0"))
}

func TestIsVersionGreaterThan(t *testing.T) {
	assert.True(t, IsVersionGreaterThan("1.2.0", "1.1.0"))
	assert.False(t, IsVersionGreaterThan("1.1.0", "1.1.0"))
	assert.False(t, IsVersionGreaterThan("1.0.0", "1.1.0"))
}

func TestSortVersion(t *testing.T) {
	versions := SortVersion{"1.10.0", "1.2.0", "1.1.0"}
	sort.Sort(versions)
	assert.Equal(t, SortVersion{"1.1.0", "1.2.0", "1.10.0"}, versions)
}

func TestStringAndStringFull(t *testing.T) {
	oldV, oldC, oldB, oldT := Version, GitCommit, GitBranch, BuildTime
	defer func() { Version, GitCommit, GitBranch, BuildTime = oldV, oldC, oldB, oldT }()
	Version = "0.9.0"
	GitCommit = "deadbeefcafef00d"
	GitBranch = "main"
	BuildTime = "2026-01-01T00:00:00Z"

	assert.Equal(t, "0.9.0-deadbeef", String())
	assert.Equal(t, "Version=0.9.0 Commit=deadbeef Branch=main BuildTime=2026-01-01T00:00:00Z", StringFull())
}
