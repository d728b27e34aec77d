package domain

// ReturnCode is a standardized ACH return reason code (R01-R33).
type ReturnCode string

const (
	R01 ReturnCode = "R01"
	R02 ReturnCode = "R02"
	R03 ReturnCode = "R03"
	R04 ReturnCode = "R04"
	R05 ReturnCode = "R05"
	R06 ReturnCode = "R06"
	R07 ReturnCode = "R07"
	R08 ReturnCode = "R08"
	R09 ReturnCode = "R09"
	R10 ReturnCode = "R10"
	R11 ReturnCode = "R11"
	R12 ReturnCode = "R12"
	R13 ReturnCode = "R13"
	R14 ReturnCode = "R14"
	R15 ReturnCode = "R15"
	R16 ReturnCode = "R16"
	R17 ReturnCode = "R17"
	R18 ReturnCode = "R18"
	R19 ReturnCode = "R19"
	R20 ReturnCode = "R20"
	R21 ReturnCode = "R21"
	R22 ReturnCode = "R22"
	R23 ReturnCode = "R23"
	R24 ReturnCode = "R24"
	R25 ReturnCode = "R25"
	R26 ReturnCode = "R26"
	R27 ReturnCode = "R27"
	R28 ReturnCode = "R28"
	R29 ReturnCode = "R29"
	R30 ReturnCode = "R30"
	R31 ReturnCode = "R31"
	R32 ReturnCode = "R32"
	R33 ReturnCode = "R33"
)

// returnReasons is the closed mapping from return code to the
// human-readable reason attached to returned orders.
var returnReasons = map[ReturnCode]string{
	R01: "Insufficient Funds",
	R02: "Account Closed",
	R03: "No Account/Unable to Locate Account",
	R04: "Invalid Account Number",
	R05: "Unauthorized Debit to Consumer Account",
	R06: "Returned per ODFI's Request",
	R07: "Authorization Revoked by Customer",
	R08: "Payment Stopped",
	R09: "Uncollected Funds",
	R10: "Customer Advises Not Authorized",
	R11: "Customer Advises Entry Not in Accordance with Authorization",
	R12: "Account Sold to Another DFI",
	R13: "Invalid ACH Routing Number",
	R14: "Representative Payee Deceased",
	R15: "Beneficiary or Account Holder Deceased",
	R16: "Account Frozen",
	R17: "File Record Edit Criteria",
	R18: "Improper Effective Entry Date",
	R19: "Amount Field Error",
	R20: "Non-Transaction Account",
	R21: "Invalid Company Identification",
	R22: "Invalid Individual ID Number",
	R23: "Credit Entry Refused by Receiver",
	R24: "Duplicate Entry",
	R25: "Addenda Error",
	R26: "Mandatory Field Error",
	R27: "Trace Number Error",
	R28: "Routing Number Check Digit Error",
	R29: "Corporate Customer Advises Not Authorized",
	R30: "RDFI Not Participant in Check Truncation Program",
	R31: "Permissible Return Entry",
	R32: "RDFI Non-Settlement",
	R33: "Return of XCK Entry",
}

// Valid reports whether the code is part of the closed R01-R33 set.
func (c ReturnCode) Valid() bool {
	_, ok := returnReasons[c]
	return ok
}

// Reason returns the human-readable reason for a return code. Unrecognized
// codes yield ok=false rather than a silent blank string.
func (c ReturnCode) Reason() (string, bool) {
	reason, ok := returnReasons[c]
	return reason, ok
}
