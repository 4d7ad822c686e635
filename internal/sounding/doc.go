// Package sounding parses BUFKIT-style sounding text and derives the fire
// weather parameters plotted for each profile.
//
// # Text Format
//
// A file holds one model run for one site. An optional parameter line names
// the profile columns:
//
//	SNPARM = PRES;TMPC;DWPC;HGHT;SKNT;DRCT
//
// Each profile starts with a station header, followed by optional header
// lines, a column line, and whitespace separated rows of numbers (rows may
// wrap across lines):
//
//	STID = KMSO STNM = 727730 TIME = 170902/1200
//	SLAT = 46.92 SLON = -114.08 SELV = 972.0
//	STIM = 0
//
//	PRES TMPC DWPC HGHT SKNT DRCT
//	905.0 20.0 2.0 972.0 5.0 270.0
//	850.0 16.1 0.5 1500.0 12.0 265.0
//
// TIME is yymmdd/hhmm UTC. STIM is the forecast hour; when absent it is
// derived from the first profile in the file. -9999 marks a missing value.
// Parsing stops at the surface section ("STN YYMMDD/HHMM ..." header).
//
// # Derived Parameters
//
// These are simplified dry-adiabatic diagnostics, not a full parcel theory:
//
//	HDW: max vapor pressure deficit (hPa) times max wind (m/s) in the lowest 500 m AGL
//	E0:  positive buoyant energy (J/kg) of a surface parcel lifted dry-adiabatically to 500 hPa
//	DE:  change in that energy when the surface parcel warms by 1 °C
//	T0:  surface temperature (°C) whose potential temperature matches the warmest
//	     potential temperature below 500 hPa
//	DT0: T0 minus the observed surface temperature, never negative
//
// AnalyzeCapePartitions additionally warms the surface parcel from 0 to
// 15 °C and splits its positive energy into the part gained below the
// lifting condensation level and the part gained above it, where the parcel
// follows the pseudo-adiabat. These feed the heat map of the merged plot.
//
// Values that cannot be computed are NaN.
package sounding
