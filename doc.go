// Package main provides the entry point for the wims-lti bridge service.
// It connects Learning Management Systems to WIMS exercise servers: LTI
// launches from an LMS provision matching classes, users and activities on a
// WIMS server, and scheduled jobs periodically read the scores recorded by
// WIMS and report them back to the LMS gradebook through the IMS Basic
// Outcomes callback protocol. The application uses gorm for data persistence.
package main
