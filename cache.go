package script

import (
	"sync"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/script/ast"
	"github.com/oarkflow/script/parser"
)

const (
	programCacheCounters = 1e5
	programCacheMaxCost  = 64 << 20
)

// programCache holds parsed programs keyed by their source text. Parsed
// trees are never mutated by the evaluator, so one tree can back any
// number of programs.
type programCache struct {
	cache *ristretto.Cache
}

var (
	sharedProgramCacheOnce sync.Once
	sharedProgramCache     *programCache
)

func newProgramCache(counters, maxCost int64) (*programCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &programCache{cache: cache}, nil
}

// defaultProgramCache is nil when the cache could not be created; compile
// then parses every time.
func defaultProgramCache() *programCache {
	sharedProgramCacheOnce.Do(func() {
		c, err := newProgramCache(programCacheCounters, programCacheMaxCost)
		if err == nil {
			sharedProgramCache = c
		}
	})
	return sharedProgramCache
}

func (c *programCache) compile(source string) (*ast.Program, error) {
	if c == nil {
		return parser.Parse(source)
	}
	if v, ok := c.cache.Get(source); ok {
		if program, ok := v.(*ast.Program); ok {
			return program, nil
		}
	}
	program, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	c.cache.Set(source, program, int64(len(source))+1)
	return program, nil
}

func (c *programCache) wait() {
	if c != nil {
		c.cache.Wait()
	}
}
