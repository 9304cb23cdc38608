package services

// Identity is the authenticated caller of an operation. The zero value is
// an anonymous caller.
type Identity struct {
	UserID  string
	Email   string
	IsStaff bool
}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// requireAuthenticated fails with ErrUnauthorized for anonymous callers.
func requireAuthenticated(caller Identity) error {
	if !caller.Authenticated() {
		return ErrUnauthorized
	}
	return nil
}

// requireStaff fails with ErrUnauthorized for anonymous callers and
// ErrForbidden for authenticated non-staff.
func requireStaff(caller Identity) error {
	if err := requireAuthenticated(caller); err != nil {
		return err
	}
	if !caller.IsStaff {
		return ErrForbidden
	}
	return nil
}

// requireOwnerOrStaff guards writes to a resource owned by ownerID.
func requireOwnerOrStaff(caller Identity, ownerID string) error {
	if err := requireAuthenticated(caller); err != nil {
		return err
	}
	if caller.IsStaff || caller.UserID == ownerID {
		return nil
	}
	return ErrForbidden
}

// ServiceIdentity is the staff-level caller used by background jobs and
// service-token routes. name shows up in logs.
func ServiceIdentity(name string) Identity {
	return Identity{UserID: "service:" + name, Email: name, IsStaff: true}
}
