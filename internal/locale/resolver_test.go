package locale

import (
	"testing"
	"testing/fstest"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const baseTable = `
system:
  statuses: ["one", "two {x}"]
commands:
  ping_desc: "Ping the bot"
responses:
  greeting: "Hello {name}!"
  braces: "{{literal}} {name}"
  only_base: "base only"
  ping_desc: "shadowed by commands"
`

const portugueseTable = `
system: {}
commands:
  ping_desc: "Pinga o bot"
responses:
  greeting: "Olá {name}!"
`

func newResolver(t *testing.T, files map[string]string) (*Resolver, *observer.ObservedLogs) {
	t.Helper()
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	core, logs := observer.New(zapcore.DebugLevel)
	r, err := New(fsys, zap.New(core))
	require.NoError(t, err)
	return r, logs
}

func TestEmbeddedTablesLoad(t *testing.T) {
	r, err := New(nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"en-GB", "pt-BR"}, r.Supported())

	for _, code := range r.Supported() {
		text, ok := r.Text(code, "error_unknown", nil)
		assert.True(t, ok, code)
		assert.NotEmpty(t, text, code)
	}
	statuses, ok := r.List("en-GB", "statuses")
	require.True(t, ok)
	assert.NotEmpty(t, statuses)
}

func TestNormalize(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"en-GB.yml": baseTable, "pt-BR.yml": portugueseTable})

	cases := map[string]string{
		"en-US":  "en-GB",
		"en":     "en-GB",
		"en-GB":  "en-GB",
		"pt-BR":  "pt-BR",
		"pt":     "pt-BR",
		"es-ES":  "en-GB",
		"":       "en-GB",
		"??bad?": "en-GB",
	}
	for in, want := range cases {
		assert.Equal(t, want, r.Normalize(in), in)
	}
}

func TestUnsupportedLocaleMatchesBase(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"en-GB.yml": baseTable})

	want, ok := r.Text("en-GB", "greeting", Args{"name": "Ann"})
	require.True(t, ok)
	got, ok := r.Text("ja", "greeting", Args{"name": "Ann"})
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, "Hello Ann!", got)
}

func TestSectionOrderAndLists(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"en-GB.yml": baseTable})

	text, ok := r.Text("en-GB", "ping_desc", nil)
	require.True(t, ok)
	assert.Equal(t, "Ping the bot", text, "commands section is searched before responses")

	list, ok := r.List("en-GB", "statuses")
	require.True(t, ok)
	assert.Equal(t, []string{"one", "two {x}"}, list, "lists are returned verbatim")

	text, ok = r.Text("en-GB", "braces", Args{"name": "x"})
	require.True(t, ok)
	assert.Equal(t, "{literal} x", text)
}

func TestMissingKeyFallsBackAndLogsOnce(t *testing.T) {
	r, logs := newResolver(t, map[string]string{"en-GB.yml": baseTable, "pt-BR.yml": portugueseTable})

	for i := 0; i < 3; i++ {
		text, ok := r.Text("pt-BR", "only_base", nil)
		require.True(t, ok)
		assert.Equal(t, "base only", text)
	}
	assert.Equal(t, 1, logs.FilterMessage("missing translation key").Len())

	for i := 0; i < 2; i++ {
		_, ok := r.Text("pt-BR", "nowhere", nil)
		assert.False(t, ok)
	}
	// one line per locale for the pt-BR lookup and its en-GB fallback
	assert.Equal(t, 3, logs.FilterMessage("missing translation key").Len())
}

func TestFormattingFailureYieldsNoValue(t *testing.T) {
	r, logs := newResolver(t, map[string]string{"en-GB.yml": baseTable})

	_, ok := r.Text("en-GB", "greeting", nil)
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("failed to format string").Len())
}

func TestTableMissingSectionIsInvalid(t *testing.T) {
	r, logs := newResolver(t, map[string]string{
		"en-GB.yml": baseTable,
		"pt-BR.yml": "system: {}\ncommands: {}\n",
	})

	text, ok := r.Text("pt-BR", "greeting", Args{"name": "Ann"})
	require.True(t, ok)
	assert.Equal(t, "Hello Ann!", text)
	assert.Equal(t, 1, logs.FilterMessage("failed to load locale table").Len())
}

func TestBrokenBaseTableYieldsNothing(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"en-GB.yml": "system: {}\n"})
	_, ok := r.Text("en-GB", "greeting", Args{"name": "Ann"})
	assert.False(t, ok)
}

func TestNewRequiresBaseTable(t *testing.T) {
	_, err := New(fstest.MapFS{"pt-BR.yml": &fstest.MapFile{Data: []byte(portugueseTable)}}, zap.NewNop())
	assert.Error(t, err)
}

func TestLocalizations(t *testing.T) {
	r, _ := newResolver(t, map[string]string{"en-GB.yml": baseTable, "pt-BR.yml": portugueseTable})
	assert.Equal(t, map[discordgo.Locale]string{discordgo.PortugueseBR: "Pinga o bot"}, r.Localizations("ping_desc"))
	assert.Empty(t, r.Localizations("only_base"))
}

func TestFormat(t *testing.T) {
	out, err := Format("{a} and {b}", Args{"a": 1, "b": "two"})
	require.NoError(t, err)
	assert.Equal(t, "1 and two", out)

	_, err = Format("{a", Args{"a": 1})
	assert.Error(t, err)
	_, err = Format("a}", nil)
	assert.Error(t, err)
	_, err = Format("{missing}", Args{})
	assert.Error(t, err)

	out, err = Format("no placeholders", nil)
	require.NoError(t, err)
	assert.Equal(t, "no placeholders", out)
}
