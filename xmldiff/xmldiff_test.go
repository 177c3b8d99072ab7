package xmldiff

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize(`<a b="1" a="2"><c>t</c><d/></a>`, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "<a a=\"2\" b=\"1\">\n  <c>t</c>\n  <d/>\n</a>\n", got)
}

func TestNormalize_DropsIgnoredAttributes(t *testing.T) {
	got, err := Normalize(`<p:sp><a:rPr lang="en" dirty="0" a:rsidR="00A1"/></p:sp>`, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "<p:sp>\n  <a:rPr lang=\"en\"/>\n</p:sp>\n", got)
}

func TestNormalize_SkipsCommentsAndDeclarations(t *testing.T) {
	got, err := Normalize("<?xml version=\"1.0\"?>\n<!-- saved --><a><b/></a>\n", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "<a>\n  <b/>\n</a>\n", got)
}

func TestDiff_IdenticalInputs(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
	}{
		{"same text", `<a><b x="1"/></a>`, `<a><b x="1"/></a>`},
		{"whitespace only", "<a>\n  <b x=\"1\"/>\n</a>", `<a><b x="1"/></a>`},
		{"attribute order", `<a><b x="1" y="2"/></a>`, `<a><b y="2" x="1"/></a>`},
		{"ignored attribute", `<a><r dirty="0">hi</r></a>`, `<a><r dirty="1">hi</r></a>`},
		{"ignored glob", `<a><r rsidR="1" rsidRPr="2">hi</r></a>`, `<a><r rsidR="9">hi</r></a>`},
		{"collapsed text", `<a><t>hello   world</t></a>`, `<a><t> hello world </t></a>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Compare(tt.old, tt.new, DefaultOptions())
			require.NoError(t, err)
			assert.True(t, r.Identical())
			assert.Empty(t, r.Text)
			assert.Equal(t, Stat{}, r.Stat)
		})
	}
}

func TestDiff_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		side     string
	}{
		{"plain text", "not xml", "<a/>", "old"},
		{"mismatched tags", "<a/>", "<a><b></a>", "new"},
		{"unclosed", "<a>", "<a/>", "old"},
		{"empty", "<a/>", "", "new"},
		{"two roots", "<a/><b/>", "<a/>", "old"},
		{"duplicate attribute", "<a x='1' x='2'/>", "<a/>", "old"},
		{"duplicate ignored attribute", "<a/>", `<a dirty="0" dirty="1"/>`, "new"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Diff(tt.old, tt.new, DefaultOptions())
			require.Error(t, err)
			assert.Empty(t, out)
			assert.True(t, errors.Is(err, ErrMalformedDocument))

			var me *MalformedDocumentError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.side, me.Side)
		})
	}
}

func nineChildren(changed int) string {
	var sb strings.Builder
	sb.WriteString("<root>")
	for i := 1; i <= 9; i++ {
		v := fmt.Sprint(i)
		if i == changed {
			v = "x"
		}
		fmt.Fprintf(&sb, `<c n="%s"/>`, v)
	}
	sb.WriteString("</root>")
	return sb.String()
}

func TestDiff_HunkHeader(t *testing.T) {
	opts := DefaultOptions()
	opts.SemanticGrouping = false

	out, err := Diff(nineChildren(0), nineChildren(5), opts)
	require.NoError(t, err)

	want := strings.Join([]string{
		"--- old",
		"+++ new",
		"@@ -3,7 +3,7 @@",
		`   <c n="2"/>`,
		`   <c n="3"/>`,
		`   <c n="4"/>`,
		`-  <c n="5"/>`,
		`+  <c n="x"/>`,
		`   <c n="6"/>`,
		`   <c n="7"/>`,
		`   <c n="8"/>`,
	}, "\n") + "\n"
	assert.Equal(t, want, out)
}

func TestDiff_ContextOption(t *testing.T) {
	opts := DefaultOptions()
	opts.SemanticGrouping = false
	opts.Context = 1

	out, err := Diff(nineChildren(0), nineChildren(5), opts)
	require.NoError(t, err)
	assert.Contains(t, out, "@@ -5,3 +5,3 @@\n")
}

func TestDiff_Labels(t *testing.T) {
	opts := DefaultOptions()
	opts.OldLabel = "slide-3@a1"
	opts.NewLabel = "slide-3@b2"

	out, err := Diff(`<a><b/></a>`, `<a><c/></a>`, opts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "--- slide-3@a1\n+++ slide-3@b2\n"))
}

func TestCompare_PureAddition(t *testing.T) {
	r, err := Compare(`<a><b/></a>`, `<a><b/><c/></a>`, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, r.Identical())
	assert.Equal(t, Stat{Added: 1}, r.Stat)
	assert.Contains(t, r.Text, "+  <c/>\n")
}

func TestCompare_ChangedLine(t *testing.T) {
	r, err := Compare(`<a><b v="1"/></a>`, `<a><b v="2"/></a>`, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Stat{Changed: 1}, r.Stat)
}

const shapeOld = `<p:spTree>
  <p:sp>
    <p:nvSpPr><p:cNvPr id="2" name="Title"/></p:nvSpPr>
    <p:txBody><a:p><a:r><a:t>Hello</a:t></a:r></a:p></p:txBody>
  </p:sp>
</p:spTree>`

const shapeNew = `<p:spTree>
  <p:sp>
    <p:nvSpPr><p:cNvPr id="2" name="Title"/></p:nvSpPr>
    <p:txBody><a:p><a:r><a:t>Hello</a:t></a:r></a:p></p:txBody>
  </p:sp>
  <p:sp>
    <p:nvSpPr><p:cNvPr id="3" name="Box"/></p:nvSpPr>
  </p:sp>
</p:spTree>`

func TestDiff_SemanticGrouping(t *testing.T) {
	out, err := Diff(shapeOld, shapeNew, DefaultOptions())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	start := indexOf(lines, StartMarker(UnitShape))
	end := indexOf(lines, EndMarker(UnitShape))
	require.GreaterOrEqual(t, start, 0, out)
	require.Greater(t, end, start, out)
	assert.Equal(t, "+  <p:sp>", lines[start+1])
	assert.Equal(t, "+  </p:sp>", lines[end-1])
}

func TestDiff_SemanticGroupingRemovedShape(t *testing.T) {
	out, err := Diff(shapeNew, shapeOld, DefaultOptions())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	start := indexOf(lines, StartMarker(UnitShape))
	end := indexOf(lines, EndMarker(UnitShape))
	require.GreaterOrEqual(t, start, 0, out)
	require.Greater(t, end, start, out)
	assert.Equal(t, "-  <p:sp>", lines[start+1])
	assert.Equal(t, "-  </p:sp>", lines[end-1])
}

func TestGroupSemantic(t *testing.T) {
	shapeStart, shapeEnd := StartMarker(UnitShape), EndMarker(UnitShape)
	propsStart, propsEnd := StartMarker(UnitShapeProperties), EndMarker(UnitShapeProperties)

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "added shape properties",
			in:   []string{" <p:sp>", "+  <p:spPr>", "+    <a:xfrm/>", "+  </p:spPr>", " </p:sp>"},
			want: []string{" <p:sp>", propsStart, "+  <p:spPr>", "+    <a:xfrm/>", "+  </p:spPr>", propsEnd, " </p:sp>"},
		},
		{
			name: "removed shape properties",
			in:   []string{"-  <p:spPr>", "-    <a:xfrm/>", "-  </p:spPr>", "+  <p:spPr/>"},
			want: []string{propsStart, "-  <p:spPr>", "-    <a:xfrm/>", "-  </p:spPr>", propsEnd, propsStart, "+  <p:spPr/>", propsEnd},
		},
		{
			name: "removed shape",
			in:   []string{"@@ -1,5 +1,2 @@", " <p:spTree>", "-  <p:sp>", "-    <p:nvSpPr/>", "-  </p:sp>", " </p:spTree>"},
			want: []string{"@@ -1,5 +1,2 @@", " <p:spTree>", shapeStart, "-  <p:sp>", "-    <p:nvSpPr/>", "-  </p:sp>", shapeEnd, " </p:spTree>"},
		},
		{
			name: "self-closing shape",
			in:   []string{" <p:spTree>", "+  <p:sp/>", " </p:spTree>"},
			want: []string{" <p:spTree>", shapeStart, "+  <p:sp/>", shapeEnd, " </p:spTree>"},
		},
		{
			name: "close tag from the other side",
			in:   []string{"-  <p:sp>", "-    <p:nvSpPr/>", "+  </p:sp>", "-  </p:sp>", " </p:spTree>"},
			want: []string{shapeStart, "-  <p:sp>", "-    <p:nvSpPr/>", "+  </p:sp>", "-  </p:sp>", shapeEnd, " </p:spTree>"},
		},
		{
			name: "context close tag",
			in:   []string{`-  <p:sp a="1">`, `+  <p:sp a="2">`, "     <p:nvSpPr/>", "   </p:sp>"},
			want: []string{shapeStart, `-  <p:sp a="1">`, `+  <p:sp a="2">`, "     <p:nvSpPr/>", "   </p:sp>", shapeEnd},
		},
		{
			name: "hunk header ends group",
			in:   []string{"+  <p:sp>", "+    <p:nvSpPr/>", "@@ -9,1 +9,1 @@", " <x/>"},
			want: []string{shapeStart, "+  <p:sp>", "+    <p:nvSpPr/>", shapeEnd, "@@ -9,1 +9,1 @@", " <x/>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, groupSemantic(tt.in))
		})
	}
}

func TestDiff_SemanticGroupingDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.SemanticGrouping = false

	out, err := Diff(shapeOld, shapeNew, opts)
	require.NoError(t, err)
	assert.NotContains(t, out, "###")

	r, err := Compare(shapeOld, shapeNew, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, out, r.Unified)
}

func TestDiff_TextRunGroup(t *testing.T) {
	old := `<a:p><a:r><a:t>Hello</a:t></a:r></a:p>`
	newer := `<a:p><a:r><a:t>Hello</a:t></a:r><a:r><a:t>World</a:t></a:r></a:p>`

	out, err := Diff(old, newer, DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, out, StartMarker(UnitTextRun)+"\n+  <a:r>\n+    <a:t>World</a:t>\n+  </a:r>\n"+EndMarker(UnitTextRun)+"\n")
}

func TestDiff_IgnoreNamespaces(t *testing.T) {
	old := `<p:sld xmlns:p="urn:p"><p:sp/></p:sld>`
	newer := `<q:sld xmlns:q="urn:p"><q:sp/></q:sld>`

	opts := DefaultOptions()
	r, err := Compare(old, newer, opts)
	require.NoError(t, err)
	assert.False(t, r.Identical())

	opts.IgnoreNamespaces = true
	r, err = Compare(old, newer, opts)
	require.NoError(t, err)
	assert.True(t, r.Identical())
}

func TestDiff_WhitespaceSignificant(t *testing.T) {
	opts := DefaultOptions()
	opts.IgnoreWhitespace = false

	r, err := Compare(`<a><t>a  b</t></a>`, `<a><t>a b</t></a>`, opts)
	require.NoError(t, err)
	assert.False(t, r.Identical())

	r, err = Compare(`<a><t>a  b</t></a>`, `<a><t>a b</t></a>`, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, r.Identical())
}

func TestOptions_Validate(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())

	opts.IgnoreAttributes = []string{"rsid["}
	assert.Error(t, opts.Validate())

	_, err := Diff("<a/>", "<b/>", opts)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformedDocument))
}

func TestParseStat_Empty(t *testing.T) {
	st, err := ParseStat("")
	require.NoError(t, err)
	assert.Equal(t, Stat{}, st)
}

func indexOf(lines []string, s string) int {
	for i, l := range lines {
		if l == s {
			return i
		}
	}
	return -1
}
