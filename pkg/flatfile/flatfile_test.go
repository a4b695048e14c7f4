package flatfile

import (
    "fmt"
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestParseNormalizes(t *testing.T) {
    in := "# h2o nodes\n10.0.0.2:7946\n\n10.0.0.1, 10.0.0.2:7946\n[::1]:7000\n::2\n"
    ff, err := Parse(strings.NewReader(in), 7946)
    require.NoError(t, err)
    assert.Equal(t, []string{"10.0.0.1:7946", "10.0.0.2:7946", "[::1]:7000", "[::2]:7946"}, ff.Nodes)
}

func TestParseLastLineWithoutNewline(t *testing.T) {
    ff, err := Parse(strings.NewReader("10.0.0.1:7946\n10.0.0.2:7946"), 0)
    require.NoError(t, err)
    assert.Equal(t, []string{"10.0.0.1:7946", "10.0.0.2:7946"}, ff.Nodes)
}

func TestParseLongCommaSeparatedLine(t *testing.T) {
    entries := make([]string, 0, 5000)
    for i := 0; i < 5000; i++ { entries = append(entries, fmt.Sprintf("10.%d.%d.%d:7946", i/65536, (i/256)%256, i%256)) }
    line := strings.Join(entries, ",")
    require.Greater(t, len(line), 64<<10)

    ff, err := Parse(strings.NewReader(line+"\n"), 0)
    require.NoError(t, err)
    assert.Len(t, ff.Nodes, 5000)
}

func TestParseErrors(t *testing.T) {
    cases := []struct {
        name string
        body string
        port int
        want error
    }{
        {"empty", "", 7946, ErrEmpty},
        {"only comments", "# nothing\n\n", 7946, ErrEmpty},
        {"missing port", "10.0.0.1\n", 0, ErrInvalidEntry},
        {"empty port", "10.0.0.1:\n", 7946, ErrInvalidEntry},
        {"empty ipv6 port", "[::1]:\n", 7946, ErrInvalidEntry},
        {"bad port", "10.0.0.1:http\n", 7946, ErrInvalidEntry},
        {"port out of range", "10.0.0.1:70000\n", 7946, ErrInvalidEntry},
        {"garbage", "not a host/path\n", 7946, ErrInvalidEntry},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            _, err := Parse(strings.NewReader(tc.body), tc.port)
            assert.ErrorIs(t, err, tc.want)
        })
    }
}

func TestStringRoundTrip(t *testing.T) {
    ff, err := FromEntries([]string{"b:2", "a:1"}, 0)
    require.NoError(t, err)
    assert.Equal(t, "a:1\nb:2\n", ff.String())
    again, err := Parse(strings.NewReader(ff.String()), 0)
    require.NoError(t, err)
    assert.Equal(t, ff, again)
    assert.Empty(t, FlatFile{}.String())
}
