package analytics

import "errors"

var (
	// ErrROIUnavailable marks every condition under which the ROI section is
	// left out of a report without failing the request.
	ErrROIUnavailable = errors.New("roi unavailable")

	ErrAdsNotConnected = errors.New("ads account not connected")

	ErrAdsConnectionExpired = errors.New("ads connection expired")

	ErrNoAdAccount = errors.New("no primary ad account configured")

	// ErrNoSections is returned when none of the row-store backed sections
	// could be computed.
	ErrNoSections = errors.New("no analytics section could be computed")
)
