package ver

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionFormat(t *testing.T) {
	v := Version{
		Version:   "v1.2.3",
		GoVersion: "go1.22.0",
		Revision:  "b1fd4218c0ffee",
		BuildTime: "2024-01-02T15:04:05Z",
		Dirty:     true,
	}

	assert.Equal(t, "b1fd421-dirty", v.Commit())
	assert.Equal(t, "Go Version: go1.22.0\nVersion: v1.2.3\nCommit: b1fd421-dirty\nBuild Time: Tue Jan  2 15:04:05 2024\nOS/Arch: "+runtime.GOOS+"/"+runtime.GOARCH+"\n", v.Format())

	v.BuildTime = "unknown"
	assert.Contains(t, v.Format(), "Build Time: unknown\n")
}
