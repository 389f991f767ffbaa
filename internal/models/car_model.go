package models

import "time"

// Car is a license plate a user keeps on file for reuse when booking.
type Car struct {
	ID           string    `json:"id" firestore:"-"`
	LicensePlate string    `json:"licensePlate" firestore:"licensePlate" validate:"len=6,alphanum,uppercase"`
	UserID       string    `json:"userId" firestore:"userId" validate:"required"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}
