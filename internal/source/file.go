package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/message"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

// FileLoader loads runs from flat files, one run per file. It publishes all
// files as one message or, if any file cannot be read or dated, a single
// error and nothing else.
type FileLoader struct {
	Site  domain.Site
	Model string
	Start time.Time
	End   time.Time
	Paths []string
}

func (l FileLoader) Load(_ context.Context, out message.Sender) {
	runs := make([]timeseries.Run[string], 0, len(l.Paths))
	for _, path := range l.Paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			out.Send(message.Error(sourceErr(domain.KindIO, "read file", l.Site.ID, l.Model, err)))
			return
		}
		init, err := sounding.InitTime(string(raw))
		if err != nil {
			out.Send(message.Error(sourceErr(domain.KindParse, "read init time", l.Site.ID, l.Model,
				fmt.Errorf("%s: %w", path, err))))
			return
		}
		runs = append(runs, timeseries.Run[string]{InitTime: init, Data: string(raw)})
	}

	out.Send(message.Data(message.StringData{
		Meta: domain.MetaData{
			Site:  l.Site,
			Model: l.Model,
			Start: l.Start,
			Now:   l.Start,
			End:   l.End,
		},
		Runs: runs,
	}))
}
