package database

import (
	"errors"
	"fmt"

	"github.com/sahilchouksey/devpilot-api/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{db: db, log: log}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	s.log.Info("starting database seeding")

	added, err := s.SeedTechStacks()
	if err != nil {
		return fmt.Errorf("failed to seed tech stacks: %w", err)
	}

	s.log.Info("database seeding completed", zap.Int("tech_stacks_added", added))
	return nil
}

// SeedTechStacks inserts catalogue entries whose name is not present yet and
// returns how many were added
func (s *Seeder) SeedTechStacks() (int, error) {
	added := 0
	for _, tech := range DefaultTechStacks() {
		var existing model.TechStack
		err := s.db.Where("name = ?", tech.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return added, err
		}

		tech := tech
		if err := s.db.Create(&tech).Error; err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// DefaultTechStacks is the initial catalogue
func DefaultTechStacks() []model.TechStack {
	entries := []struct{ name, category, description string }{
		// Programming Languages
		{"Python", "Programming Language", "High-level programming language for general-purpose programming"},
		{"JavaScript", "Programming Language", "Dynamic programming language for web development"},
		{"TypeScript", "Programming Language", "Typed superset of JavaScript"},
		{"Java", "Programming Language", "Object-oriented programming language"},
		{"C#", "Programming Language", "Microsoft's object-oriented programming language"},
		{"C++", "Programming Language", "General-purpose programming language"},
		{"Go", "Programming Language", "Programming language developed by Google"},
		{"Rust", "Programming Language", "Systems programming language focused on safety"},
		{"Ruby", "Programming Language", "Dynamic programming language"},
		{"PHP", "Programming Language", "Server-side scripting language"},
		{"Swift", "Programming Language", "Apple's programming language for iOS/macOS"},
		{"Kotlin", "Programming Language", "JVM programming language by JetBrains"},

		// Frontend
		{"React", "Frontend Framework", "JavaScript library for building user interfaces"},
		{"Angular", "Frontend Framework", "TypeScript-based web application framework"},
		{"Vue.js", "Frontend Framework", "Progressive JavaScript framework"},
		{"Svelte", "Frontend Framework", "Compile-time web framework"},
		{"Next.js", "Frontend Framework", "React framework for production"},

		// Backend
		{"Node.js", "Backend Framework", "JavaScript runtime for server-side development"},
		{"Express.js", "Backend Framework", "Fast web framework for Node.js"},
		{"FastAPI", "Backend Framework", "Modern Python web framework"},
		{"Django", "Backend Framework", "High-level Python web framework"},
		{"Flask", "Backend Framework", "Lightweight Python web framework"},
		{"Spring Boot", "Backend Framework", "Java framework for building applications"},
		{"ASP.NET Core", "Backend Framework", "Microsoft's web framework"},
		{"Ruby on Rails", "Backend Framework", "Ruby web framework"},

		// Databases
		{"PostgreSQL", "Database", "Advanced open-source relational database"},
		{"MySQL", "Database", "Popular open-source relational database"},
		{"MongoDB", "Database", "Document-oriented NoSQL database"},
		{"Redis", "Database", "In-memory data structure store"},
		{"SQLite", "Database", "Lightweight relational database"},
		{"Cassandra", "Database", "Distributed NoSQL database"},
		{"Elasticsearch", "Database", "Search and analytics engine"},

		// Cloud
		{"AWS", "Cloud Platform", "Amazon Web Services"},
		{"Google Cloud", "Cloud Platform", "Google Cloud Platform"},
		{"Azure", "Cloud Platform", "Microsoft Azure"},
		{"Heroku", "Cloud Platform", "Platform as a service"},
		{"Vercel", "Cloud Platform", "Frontend deployment platform"},

		// DevOps
		{"Docker", "DevOps", "Containerization platform"},
		{"Kubernetes", "DevOps", "Container orchestration platform"},
		{"Jenkins", "DevOps", "Automation server for CI/CD"},
		{"GitHub Actions", "DevOps", "CI/CD platform by GitHub"},
		{"Terraform", "DevOps", "Infrastructure as code tool"},
		{"Ansible", "DevOps", "Configuration management tool"},

		// Mobile
		{"React Native", "Mobile Framework", "Cross-platform mobile development"},
		{"Flutter", "Mobile Framework", "Google's UI toolkit for mobile"},
		{"Ionic", "Mobile Framework", "Hybrid mobile app framework"},
		{"Xamarin", "Mobile Framework", "Microsoft's cross-platform framework"},

		// Testing
		{"Jest", "Testing", "JavaScript testing framework"},
		{"Pytest", "Testing", "Python testing framework"},
		{"JUnit", "Testing", "Java testing framework"},
		{"Cypress", "Testing", "End-to-end testing framework"},
		{"Selenium", "Testing", "Web application testing framework"},

		// Tools
		{"Git", "Version Control", "Distributed version control system"},
		{"GitHub", "Version Control", "Git repository hosting service"},
		{"GitLab", "Version Control", "DevOps platform with Git repository"},
		{"Jira", "Project Management", "Issue tracking and project management"},
		{"Confluence", "Documentation", "Team collaboration software"},

		// AI/ML
		{"TensorFlow", "Machine Learning", "Machine learning platform"},
		{"PyTorch", "Machine Learning", "Machine learning library"},
		{"Scikit-learn", "Machine Learning", "Machine learning library for Python"},
		{"OpenAI API", "AI/ML", "API for AI language models"},
		{"Hugging Face", "AI/ML", "Platform for machine learning models"},
	}

	stacks := make([]model.TechStack, 0, len(entries))
	for _, e := range entries {
		stacks = append(stacks, model.TechStack{Name: e.name, Category: e.category, Description: e.description})
	}
	return stacks
}
