package etsimport

import "errors"

// Sentinel errors for ETS import.
var (
	// ErrInvalidFile indicates the file is not a recognised ETS export.
	ErrInvalidFile = errors.New("invalid ETS export")

	// ErrCorruptArchive indicates the .knxproj ZIP archive cannot be read.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrProtectedProject indicates a password protected project.
	ErrProtectedProject = errors.New("password protected project")

	// ErrNoGroupAddresses indicates no group addresses were found.
	ErrNoGroupAddresses = errors.New("no group addresses found")

	// ErrFileTooLarge indicates the file exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")
)

// Warning codes for non-fatal parse issues.
const (
	WarnMissingDPT     = "MISSING_DPT"
	WarnUnsupportedDPT = "UNSUPPORTED_DPT"
	WarnDuplicateGA    = "DUPLICATE_GA"
	WarnInvalidGA      = "INVALID_GA"
)
