package fixtures

// Relations are written by natural key: specializations and halls by name,
// doctors and guides by "First Last".

type YAMLFixtures struct {
	Specializations []YAMLSpecialization `yaml:"specializations"`
	Doctors         []YAMLDoctor         `yaml:"doctors"`
	Services        []YAMLService        `yaml:"services"`
	Promotions      []YAMLPromotion      `yaml:"promotions"`
	Reviews         []YAMLReview         `yaml:"reviews"`

	Halls    []YAMLHall    `yaml:"halls"`
	Exhibits []YAMLExhibit `yaml:"exhibits"`
	Guides   []YAMLGuide   `yaml:"guides"`
	Tours    []YAMLTour    `yaml:"tours"`
}

type YAMLSpecialization struct {
	Name string `yaml:"name"`
}

type YAMLDoctor struct {
	FirstName       string   `yaml:"first_name"`
	LastName        string   `yaml:"last_name"`
	Experience      uint     `yaml:"experience"`
	Description     string   `yaml:"description"`
	IsFeatured      bool     `yaml:"is_featured"`
	Specializations []string `yaml:"specializations"`
}

type YAMLService struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Price       string   `yaml:"price"`
	IsActive    *bool    `yaml:"is_active"`
	Doctors     []string `yaml:"doctors"`
}

type YAMLPromotion struct {
	Title     string `yaml:"title"`
	Text      string `yaml:"text"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

type YAMLReview struct {
	AuthorName string `yaml:"author_name"`
	Text       string `yaml:"text"`
	Rating     int    `yaml:"rating"`
	IsApproved bool   `yaml:"is_approved"`
	Doctor     string `yaml:"doctor"`
}

type YAMLHall struct {
	Name        string `yaml:"name"`
	Floor       int    `yaml:"floor"`
	Description string `yaml:"description"`
}

type YAMLExhibit struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Period      string `yaml:"period"`
	IsOnDisplay bool   `yaml:"is_on_display"`
	Hall        string `yaml:"hall"`
}

type YAMLGuide struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Languages string `yaml:"languages"`
	Bio       string `yaml:"bio"`
}

type YAMLTour struct {
	Title           string   `yaml:"title"`
	Description     string   `yaml:"description"`
	Guide           string   `yaml:"guide"`
	Halls           []string `yaml:"halls"`
	StartsAt        string   `yaml:"starts_at"`
	DurationMinutes int      `yaml:"duration_minutes"`
	Price           string   `yaml:"price"`
	MaxVisitors     int      `yaml:"max_visitors"`
}
