package update

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func releaseServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/cov-lineages/pangolin/releases":
			w.Write([]byte(`[{"name":"pangolin v2.3.8","tag_name":"v2.3.8"},{"name":"pangolin v2.3.6"}]`))
		case "/repos/cov-lineages/pangoLEARN/releases":
			w.Write([]byte(`[{"name":"pangoLEARN data release 2021-04-01"}]`))
		case "/repos/tagged/only/releases":
			w.Write([]byte(`[{"name":"","tag_name":"v0.1"}]`))
		case "/repos/empty/repo/releases":
			w.Write([]byte(`[]`))
		case "/repos/broken/json/releases":
			w.Write([]byte(`{"message":`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fakeRunner(outputs map[string]string) Runner {
	return func(_ context.Context, name string, args ...string) (string, error) {
		out, ok := outputs[strings.Join(args, " ")]
		if !ok {
			return "", errors.New("unexpected command")
		}
		return out, nil
	}
}

func testChecker(t *testing.T) *Checker {
	c := NewChecker()
	c.APIURL = releaseServer(t).URL
	c.SetRunner(fakeRunner(map[string]string{
		"--version":            "pangolin 2.3.8\n",
		"--pangoLEARN-version": "pangoLEARN 2021-02-21\n",
	}))
	return c
}

func TestLatest(t *testing.T) {
	c := testChecker(t)
	ctx := context.Background()

	tests := []struct {
		repo    string
		want    string
		wantErr string
	}{
		{repo: "cov-lineages/pangolin", want: "pangolin v2.3.8"},
		{repo: "tagged/only", want: "v0.1"},
		{repo: "empty/repo", wantErr: "no releases"},
		{repo: "broken/json", wantErr: "decode releases"},
		{repo: "missing/repo", wantErr: "404"},
	}

	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			got, err := c.Latest(ctx, tt.repo)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstalled(t *testing.T) {
	c := testChecker(t)

	got, err := c.Installed(context.Background(), Components[0])
	require.NoError(t, err)
	assert.Equal(t, "pangolin v2.3.8", got)

	got, err = c.Installed(context.Background(), Components[1])
	require.NoError(t, err)
	assert.Equal(t, "pangoLEARN data release 2021-02-21", got)
}

func TestCheck(t *testing.T) {
	c := testChecker(t)

	statuses, err := c.Check(context.Background(), Components)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.True(t, statuses[0].Current())
	assert.False(t, statuses[1].Current())
	assert.Equal(t, "pangoLEARN data release 2021-04-01", statuses[1].Latest)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, statuses))
	assert.Equal(t,
		"Latest pangolin already installed: pangolin v2.3.8\n"+
			"Newer pangoLEARN available: pangoLEARN data release 2021-04-01\n"+
			"Consider running: `pip install git+https://github.com/cov-lineages/pangoLEARN.git --upgrade`\n",
		buf.String())
}

func TestCheck_MissingPangolin(t *testing.T) {
	c := testChecker(t)
	c.SetRunner(fakeRunner(nil))

	_, err := c.Check(context.Background(), Components)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pangolin installed version")
}
