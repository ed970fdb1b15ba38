package star

// IsAuthorized reports whether caller may move a star held by owner.
// approved is the star's single delegate and isOperator reports whether
// caller holds blanket operator approval from owner.
func IsAuthorized(caller, owner, approved Account, isOperator bool) bool {
	if caller.IsZero() {
		return false
	}

	return caller == owner || caller == approved || isOperator
}

// CanApprove reports whether caller may set the delegate of a star held by owner.
func CanApprove(caller, owner Account, isOperator bool) bool {
	if caller.IsZero() {
		return false
	}

	return caller == owner || isOperator
}

type OperatorApproval struct {
	Owner    Account
	Operator Account
	Approved bool
}
