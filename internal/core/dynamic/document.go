package dynamic

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrNotFound reports that no document with the requested name exists.
var ErrNotFound = errors.New("dynamic data not found")

// Document is one stored dynamic_data entry. Data keeps the stored
// shape as-is so names added later need no code here.
type Document struct {
	Name      string    `bson:"name"`
	Data      bson.M    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
}
