package entity

// EnrollmentRegistered is the terminal state of an enrollment application
// that counts a lead as converted.
const EnrollmentRegistered = "REGISTERED"
