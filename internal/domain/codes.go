package domain

// SuccessCode tags a successful result so clients can tell outcomes apart,
// e.g. an empty list from a populated one.
type SuccessCode string

const (
	CodeReservationMade         SuccessCode = "RESERVATION_MAKE_SUCCESS"
	CodeReservationListed       SuccessCode = "RESERVATION_LIST_SUCCESS"
	CodeReservationListEmpty    SuccessCode = "RESERVATION_LIST_EMPTY"
	CodeReservationStatusUpdate SuccessCode = "RESERVATION_UPDATE_STATUS_SUCCESS"
	CodeReservationConfirmed    SuccessCode = "RESERVATION_CONFIRM_SUCCESS"
	CodeTokenIssued             SuccessCode = "GET_TOKEN_SUCCESS"
	CodeTokenRemoved            SuccessCode = "REMOVE_TOKEN_SUCCESS"
)
