package authprovider

import "time"

// Session es la identidad autenticada emitida por el proveedor.
type Session struct {
	AccessToken string
	UserID      string
	Email       string
	ExpiresAt   time.Time
}
