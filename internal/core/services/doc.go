// Package services contains the core application services implementing the
// driving ports. Services orchestrate the driven ports and hold no
// storage or transport code of their own.
package services
