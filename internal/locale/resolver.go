package locale

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Base is the locale every lookup falls back to.
const Base = "en-GB"

//go:embed locales/*.yml
var embedded embed.FS

var sections = []string{"system", "commands", "responses"}

// redirects maps regional variants onto the variant that ships a table.
var redirects = map[string]string{
	"en":    Base,
	"en-US": Base,
	"pt":    "pt-BR",
}

var ErrInvalidTable = errors.New("locale: invalid table")

// Args are the named values substituted into {placeholders}.
type Args map[string]any

// Value is a resolved entry: either a formatted string or a verbatim list.
type Value struct {
	Text   string
	List   []string
	IsList bool
}

type table map[string]map[string]any

type Resolver struct {
	mu        sync.Mutex
	fsys      fs.FS
	logger    *zap.Logger
	supported map[string]struct{}
	tables    map[string]table
	missing   map[string]struct{}
}

// New builds a resolver over the tables in fsys (files named <locale>.yml).
// A nil fsys uses the embedded tables.
func New(fsys fs.FS, logger *zap.Logger) (*Resolver, error) {
	if fsys == nil {
		sub, err := fs.Sub(embedded, "locales")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read locale tables: %w", err)
	}

	supported := make(map[string]struct{})
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".yml" {
			continue
		}
		supported[strings.TrimSuffix(name, ".yml")] = struct{}{}
	}
	if _, ok := supported[Base]; !ok {
		return nil, fmt.Errorf("locale: base table %s.yml not found", Base)
	}

	return &Resolver{
		fsys:      fsys,
		logger:    logger,
		supported: supported,
		tables:    make(map[string]table),
		missing:   make(map[string]struct{}),
	}, nil
}

// NewFromDir loads tables from dir on disk.
func NewFromDir(dir string, logger *zap.Logger) (*Resolver, error) {
	return New(os.DirFS(dir), logger)
}

// Supported lists the locales that ship a table, sorted.
func (r *Resolver) Supported() []string {
	out := make([]string, 0, len(r.supported))
	for code := range r.supported {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Normalize maps any locale code onto a supported table.
func (r *Resolver) Normalize(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return Base
	}
	canonical := tag.String()
	if target, ok := redirects[canonical]; ok {
		canonical = target
	}
	if _, ok := r.supported[canonical]; ok {
		return canonical
	}
	return Base
}

// Resolve looks key up for the locale and formats it against args.
func (r *Resolver) Resolve(code, key string, args Args) (Value, bool) {
	code = r.Normalize(code)
	raw, ok := r.lookup(code, key)
	if !ok {
		return Value{}, false
	}

	switch v := raw.(type) {
	case []string:
		return Value{List: v, IsList: true}, true
	case string:
		text, err := Format(v, args)
		if err != nil {
			r.logger.Warn("failed to format string", zap.String("locale", code), zap.String("key", key), zap.Error(err))
			return Value{}, false
		}
		return Value{Text: text}, true
	default:
		r.logger.Warn("unsupported value type", zap.String("locale", code), zap.String("key", key), zap.String("type", fmt.Sprintf("%T", raw)))
		return Value{}, false
	}
}

// Text resolves a scalar entry.
func (r *Resolver) Text(code, key string, args Args) (string, bool) {
	value, ok := r.Resolve(code, key, args)
	if !ok || value.IsList {
		return "", false
	}
	return value.Text, true
}

// List resolves a list entry.
func (r *Resolver) List(code, key string) ([]string, bool) {
	value, ok := r.Resolve(code, key, nil)
	if !ok || !value.IsList {
		return nil, false
	}
	return value.List, true
}

// Localizations returns the key's unformatted text in every non-base table,
// keyed by Discord locale, for command registration.
func (r *Resolver) Localizations(key string) map[discordgo.Locale]string {
	out := make(map[discordgo.Locale]string)
	for _, code := range r.Supported() {
		if code == Base {
			continue
		}
		tbl, err := r.table(code)
		if err != nil {
			continue
		}
		if text, ok := find(tbl, key).(string); ok && text != "" {
			out[discordgo.Locale(code)] = text
		}
	}
	return out
}

func (r *Resolver) lookup(code, key string) (any, bool) {
	tbl, err := r.table(code)
	if err != nil {
		r.logger.Error("failed to load locale table", zap.String("locale", code), zap.Error(err))
		if code == Base {
			return nil, false
		}
		return r.lookup(Base, key)
	}
	if value := find(tbl, key); value != nil {
		return value, true
	}

	r.reportMissing(code, key)
	if code == Base {
		return nil, false
	}
	return r.lookup(Base, key)
}

func find(tbl table, key string) any {
	for _, section := range sections {
		if value, ok := tbl[section][key]; ok {
			return value
		}
	}
	return nil
}

func (r *Resolver) reportMissing(code, key string) {
	r.mu.Lock()
	id := code + "\x00" + key
	_, seen := r.missing[id]
	if !seen {
		r.missing[id] = struct{}{}
	}
	r.mu.Unlock()

	if !seen {
		r.logger.Warn("missing translation key", zap.String("locale", code), zap.String("key", key))
	}
}

func (r *Resolver) table(code string) (table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tbl, ok := r.tables[code]; ok {
		return tbl, nil
	}
	tbl, err := r.load(code)
	if err != nil {
		return nil, err
	}
	r.tables[code] = tbl
	return tbl, nil
}

func (r *Resolver) load(code string) (table, error) {
	data, err := fs.ReadFile(r.fsys, code+".yml")
	if err != nil {
		return nil, err
	}

	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s.yml: %w", code, err)
	}

	tbl := make(table, len(sections))
	for _, section := range sections {
		entries, ok := raw[section]
		if !ok {
			return nil, fmt.Errorf("%w: %s.yml has no %q section", ErrInvalidTable, code, section)
		}
		converted := make(map[string]any, len(entries))
		for key, value := range entries {
			switch v := value.(type) {
			case string:
				converted[key] = v
			case []any:
				list := make([]string, 0, len(v))
				for _, item := range v {
					list = append(list, fmt.Sprint(item))
				}
				converted[key] = list
			default:
				converted[key] = fmt.Sprint(v)
			}
		}
		tbl[section] = converted
	}
	return tbl, nil
}
