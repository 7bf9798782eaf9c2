// Package domain models the civic open-data tables handled by the ETL
// pipelines: Henrico County traffic crashes and traffic-safety grant
// opportunities.
//
// # Records
//
// Upstream tables arrive with a field set that is not known in advance. A
// [Record] is an ordered field → scalar mapping and a [RecordSet] is a slice of
// them. The observed field set of a RecordSet ([RecordSet.Fields]) is the union
// of keys over every record; a column variant is "present" when at least one
// record carries it.
//
// # Schema drift
//
// The crash feature service and the grants bulk extract rename and reformat
// columns between snapshots. Each logical field (jurisdiction code, route
// name, close date, ...) is an [AliasGroup] listing concrete variants most
// specific first. The groups and the output rename mappings live in
// aliases.yaml, which is embedded into the binary:
//
//	groups:
//	  juris_code: [Juris_Code, JURIS_CODE, juris_code, Juris Code]
//	mappings:
//	  grants:
//	    title: [OpportunityTitle, Title, ...]
//
// Group resolution ([Resolve], [Resolution]) is exact-string identity only.
// Output mapping ([Normalize]) is case- and separator-insensitive, so
// "Crash_Date", "CRASH DATE" and "crash-date" all land in "Crash Date".
//
// # Canonical schemas
//
// [CrashSchema] and [GrantSchema] are closed: output never carries a column
// outside them. Columns absent upstream receive the column's literal default.
//
// # Failure taxonomy
//
//	ErrTransport    network, timeout, non-2xx
//	ErrProtocol     malformed or error-bearing response body
//	ErrParse        no tabular format matched an archive member
//	ErrEmptyResult  a mandatory filtering stage left no records
//
// A resolution miss is not an error. It downgrades the dependent step to a
// pass-through and is reported through logs and metrics only.
package domain
