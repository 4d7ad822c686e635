// Package domain models forecast sounding sites, numerical weather models, and
// the metadata that travels with every ensemble through the pipeline.
//
// # Data Source
//
// Soundings are BUFKIT-style text products: one file per model run, each file
// holding a sequence of vertical profiles for a single site. The first profile
// in a file is the analysis (lead time zero); its valid time is the run's
// initialization time. Runs are stored in a sounding archive keyed by site,
// model, and initialization time.
//
// # Models and Horizons
//
// Every archived model has a fixed forecast horizon used to size the loading
// window (see [Model.Horizon]):
//
//	GFS:    7 days
//	NAM:    4 days
//	NAM4KM: 3 days
//
// Runs loaded from loose files carry a free-form model name (e.g. "LocalWrf")
// and never consult the horizon table; their window comes from the caller.
//
// # Time Windows
//
// [MetaData] carries three instants:
//
//	Start: earliest valid time of interest (reference - lookback)
//	Now:   the reference time plots are centred on
//	End:   latest valid time of interest (reference + model horizon)
//
// Start <= Now <= End is expected but not enforced; loaders establish it.
//
// # Errors
//
// Source failures are classified by [ErrorKind] and wrapped in [SourceError].
// They travel through the pipeline as values and are never raised across the
// message channel.
package domain
