// Package domain models earthquake catalog events and the mainshock/swarm
// pairs derived from them.
//
// # Data Source
//
// Events originate from the USGS FDSN event web service
// (https://earthquake.usgs.gov/fdsnws/event/1/), fetched as CSV in
// fixed-size time windows. Upstream stages drop bookkeeping columns, assign a
// sequential integer ID, and enrich each row with a place name, a country and
// the name of the nearest mapped fault.
//
// # Catalog Conventions
//
// Columns read by this package (header names are matched case-sensitively,
// except that "ID" and "id" are both accepted for the identifier):
//
//	ID / id     integer, required; "12.0" is accepted as 12
//	time        timestamp, required; RFC 3339, "2006-01-02 15:04:05[.fff][±hh:mm]"
//	            or "2006-01-02T15:04:05[.fff]" (UTC assumed when no zone is given)
//	latitude    decimal degrees in [-90, 90], required
//	longitude   decimal degrees in [-180, 180], required
//	mag         magnitude, required; no range clamp
//	type        event class, required ("earthquake", "quarry blast", "explosion", ...)
//	country     required by the load policy
//	depth       kilometers, optional, no unit conversion
//	continent, location, fault
//	            optional provenance carried into pairs verbatim
//
// Optional values are pointers: nil means absent, which is distinct from an
// empty string.
//
// # Pairing
//
// A mainshock is an earthquake with magnitude at or above a threshold. Its
// candidates are the earthquakes of the same working set that precede it by
// at most a fixed number of days (closed lower bound, open upper bound) and
// lie within a great-circle radius. See package swarm.
//
// # Macro Regions
//
// Latitude bands used for coarse regional grouping of Italian seismicity:
//
//	lat >= 44.0  North
//	lat >= 41.5  Center
//	otherwise    South
//	unknown      Unknown
package domain
