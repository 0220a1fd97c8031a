// Package services implements the driving ports on top of the driven ones.
//
// IngestionService owns the only writer of the VectorStore. SearchService
// reads the index snapshot and never takes that writer.
package services
