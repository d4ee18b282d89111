package models

// Typed domain structs for the six entity kinds. These are the shapes the UI
// layer works with; the store and the wire use the generic map form (ToMap).
// Validation tags are enforced before a mutation is accepted locally, so a
// payload the server would reject with a validation error never enters the
// sync queue.

// Order is an in-flight catering order.
type Order struct {
	ID         string      `json:"id,omitempty"`
	ClientID   string      `json:"client_id" validate:"required"`
	CatererID  string      `json:"caterer_id" validate:"required"`
	AirportID  string      `json:"airport_id" validate:"required"`
	FBOID      string      `json:"fbo_id,omitempty"`
	TailNumber string      `json:"tail_number" validate:"required"`
	DeliveryAt string      `json:"delivery_at" validate:"required"`
	Status     string      `json:"status,omitempty"`
	Items      []OrderItem `json:"items" validate:"required,min=1,dive"`
	Total      float64     `json:"total" validate:"gte=0"`
	Notes      string      `json:"notes,omitempty"`
	Version    int64       `json:"version,omitempty"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	MenuItemID string  `json:"menu_item_id" validate:"required"`
	Quantity   int     `json:"quantity" validate:"required,gt=0"`
	Price      float64 `json:"price" validate:"gte=0"`
	Notes      string  `json:"notes,omitempty"`
}

// Client is a charter client or operator.
type Client struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name" validate:"required"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Version int64  `json:"version,omitempty"`
}

// Caterer is a kitchen serving one or more airports.
type Caterer struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name" validate:"required"`
	AirportID   string `json:"airport_id" validate:"required"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty"`
	CutoffHours int    `json:"cutoff_hours,omitempty" validate:"gte=0"`
	Version     int64  `json:"version,omitempty"`
}

// Airport holds the minimal airport directory record.
type Airport struct {
	ID       string `json:"id,omitempty"`
	ICAO     string `json:"icao" validate:"required,len=4"`
	IATA     string `json:"iata,omitempty" validate:"omitempty,len=3"`
	Name     string `json:"name" validate:"required"`
	Timezone string `json:"timezone,omitempty"`
	Version  int64  `json:"version,omitempty"`
}

// FBO is a fixed-base operator at an airport.
type FBO struct {
	ID        string `json:"id,omitempty"`
	AirportID string `json:"airport_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Phone     string `json:"phone,omitempty"`
	Version   int64  `json:"version,omitempty"`
}

// MenuItem is a single item on a caterer's menu.
type MenuItem struct {
	ID          string  `json:"id,omitempty"`
	CatererID   string  `json:"caterer_id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price" validate:"gte=0"`
	Version     int64   `json:"version,omitempty"`
}
