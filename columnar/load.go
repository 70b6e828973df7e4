package columnar

import (
	"context"
	"sync"

	"capybara/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Opener func(path string) (Source, error)

// Dataset holds, for every key, the array read from each file that has it,
// indexed by the file's position in Files.
type Dataset struct {
	Files  []string
	Arrays map[string]map[int]Array
}

// Load opens all files concurrently and reads every accepted key.
func Load(ctx context.Context, paths []string, filter Filter, open Opener) (*Dataset, error) {
	ds := &Dataset{
		Files:  paths,
		Arrays: map[string]map[int]Array{},
	}

	log := logging.FromContext(ctx)
	mu := sync.Mutex{}
	g, ctx := errgroup.WithContext(ctx)

	for i, path := range paths {
		g.Go(func() error {
			src, err := open(path)
			if err != nil {
				return err
			}
			defer src.Close()

			read := map[string]Array{}
			for _, key := range src.Keys() {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !filter.Accept(key) {
					continue
				}

				arr, err := src.Read(key)
				if err != nil {
					return err
				}
				read[key] = arr
			}

			log.Debug("loaded file", zap.String("path", path), zap.Int("keys", len(read)))

			mu.Lock()
			defer mu.Unlock()
			for key, arr := range read {
				byFile, found := ds.Arrays[key]
				if !found {
					byFile = map[int]Array{}
					ds.Arrays[key] = byFile
				}
				byFile[i] = arr
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ds, nil
}
