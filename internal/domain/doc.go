// Package domain models the extraction and fusion of GOES-R satellite
// radiance with SONDA ground radiometer measurements.
//
// # Data Sources
//
// Satellite scans are GOES-R series ABI (Advanced Baseline Imager) NetCDF
// files published on NOAA's open-data S3 buckets (e.g. noaa-goes16). Each
// file holds one channel of one acquisition: a 2-D grid of radiance values
// on the ABI fixed grid, plus the projection parameters needed to map a
// geographic coordinate onto that grid. Full-disk products scan every 10
// minutes; the 16 spectral channels are identified as C01 through C16.
//
// Ground measurements come from SONDA (Sistema de Organização Nacional de
// Dados Ambientais), INPE's network of Brazilian surface stations. Archives
// are yearly or monthly ZIPs of minute-resolution readings; the variable of
// interest is typically glo_avg (average global horizontal irradiance,
// W/m²). Station identities are three-letter codes (BRASILIA → BRB).
//
// # ABI Fixed Grid
//
// The ABI fixed grid is a geostationary projection: grid coordinates are
// scan angles (radians) as seen from the satellite, not latitude/longitude.
// [LocateIndex] implements the inverse projection from the GOES-R Product
// Definition and Users' Guide (PUG): geodetic latitude is converted to
// geocentric, the line of sight is checked for visibility (a coordinate on
// the far side of the Earth has no grid cell), and the resulting scan
// angles are matched to the nearest x/y coordinate entries. The mapping is
// deterministic: every scan of the same product uses the same grid, so a
// station projects to the same indices for an entire run.
//
// # Pixel Windows
//
// A window of radius r around the station's grid cell covers (2r+1)² pixels.
// Windows that would cross the grid edge are rejected whole rather than
// clipped: a clipped window would silently change the physical footprint
// that a column like "radius=2_C01_11" claims to describe. Sensor fill
// values inside an accepted window propagate as null readings, never as
// zeros. Window columns are named
//
//	radius={r}_{channel}_{row}{col}   (row, col 1-based)
//
// matching the historical feature files; reduced records use the suffixes
// _mean and _center instead of row/col.
//
// # Ground Series
//
// SONDA archives are normalized onto a fully regular timestamp grid at the
// station's sampling interval: every slot in the requested range exists
// exactly once, and slots without a source record are null-valued samples.
// Two failure classes are kept strictly apart: structural problems (a
// declared column missing from the archive, an unparseable record
// timestamp) abort normalization, because they mean the source format
// changed; malformed individual values merely become nulls.
//
// # Feature Fusion
//
// [MergeSeries] joins the per-channel satellite series with the ground
// series on exact timestamp equality (no interpolation; the sampling grids
// are configured to be commensurate) and applies a completeness filter: a
// timestamp yields a feature row only when every channel pixel
// and every declared ground variable is observed. Rows dropped by the
// filter are counted per reason so data-quality regressions between runs
// are visible, but they are never errors.
package domain
