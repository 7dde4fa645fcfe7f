package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<div><b>Level:</b> 312 <span>| Elite <i>Knight</i></span></div>`))
	require.NoError(t, err)
	require.Equal(t, "Level: 312 | Elite Knight", GetText(doc))
	require.Equal(t, "", GetText(nil))
}

func TestClean(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "  Jan 05 2023,\u00a010:00 CET \n", expected: "Jan 05 2023, 10:00 CET"},
		{in: "a \t\n b", expected: "a b"},
		{in: "", expected: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, Clean(test.in))
	}
}

func TestStripThousands(t *testing.T) {
	require.Equal(t, "1234567", StripThousands(" 1,234,567 "))
	require.Equal(t, "0", StripThousands("0"))
}
