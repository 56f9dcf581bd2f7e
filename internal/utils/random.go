package utils

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var firstNames = []string{
	"Aarav", "Vivaan", "Aditya", "Arjun", "Sai", "Rohan", "Karan", "Ishaan", "Rahul", "Vikram",
	"Ananya", "Diya", "Priya", "Neha", "Kavya", "Sneha", "Pooja", "Meera", "Riya", "Anjali",
}

var lastNames = []string{
	"Sharma", "Verma", "Gupta", "Kumar", "Singh", "Patel", "Reddy", "Iyer", "Nair", "Das",
	"Joshi", "Mehta", "Rao", "Bose", "Kapoor",
}

var roles = []domain.Role{
	domain.RoleStudent,
	domain.RoleStudent,
	domain.RoleStudent,
	domain.RoleStaff,
}

func GenerateRandomName() string {
	return firstNames[rand.Intn(len(firstNames))] + " " + lastNames[rand.Intn(len(lastNames))]
}

var digits = "0123456789"

func GenerateEmailFromName(name string, emailDomainName string) string {
	local := strings.ReplaceAll(strings.ToLower(name), " ", ".")
	for i := 0; i < 3; i++ {
		local += string(digits[rand.Intn(len(digits))])
	}
	return local + "@" + emailDomainName
}

func GenerateRandomUser(password string, emailDomainName string, colleges []string) (*domain.User, error) {
	name := GenerateRandomName()
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        GenerateEmailFromName(name, emailDomainName),
		PasswordHash: string(passwordHash),
		CollegeName:  colleges[rand.Intn(len(colleges))],
		Role:         roles[rand.Intn(len(roles))],
	}

	return user, nil
}

var jobTitles = []string{
	"Software Engineer", "Data Analyst", "Frontend Developer", "Backend Developer",
	"QA Engineer", "Product Analyst", "DevOps Engineer", "Graduate Trainee",
}

var companies = []string{
	"Infosys", "TCS", "Wipro", "Zoho", "Freshworks", "Razorpay", "Swiggy", "Flipkart",
}

var locations = []string{
	"Bengaluru", "Hyderabad", "Pune", "Chennai", "Gurugram", "Remote",
}

var skillPool = []string{
	"Go", "Java", "Python", "SQL", "React", "Docker", "Kubernetes", "Linux", "Git", "AWS",
}

var experienceTiers = []string{"Fresher", "0-1 years", "1-2 years"}

// pickN returns n distinct elements of pool in random order.
func pickN(pool []string, n int) []string {
	shuffled := make([]string, len(pool))
	copy(shuffled, pool)

	// Fisher-Yates
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

func GenerateRandomJob(colleges []string, postedBy int64) *domain.Job {
	title := jobTitles[rand.Intn(len(jobTitles))]
	company := companies[rand.Intn(len(companies))]

	return &domain.Job{
		Title:           title,
		Company:         company,
		Location:        locations[rand.Intn(len(locations))],
		Salary:          fmt.Sprintf("%d LPA", rand.Intn(20)+3),
		Experience:      experienceTiers[rand.Intn(len(experienceTiers))],
		Description:     fmt.Sprintf("%s is hiring a %s from campus.", company, title),
		Skills:          pickN(skillPool, rand.Intn(4)+2),
		AllowedColleges: pickN(colleges, rand.Intn(len(colleges))+1),
		PostedBy:        &postedBy,
	}
}

func GenerateRandomPhone() string {
	phone := make([]byte, 10)
	phone[0] = "6789"[rand.Intn(4)]
	for i := 1; i < len(phone); i++ {
		phone[i] = digits[rand.Intn(len(digits))]
	}
	return string(phone)
}

func GenerateRandomRollNumber() string {
	return fmt.Sprintf("%02dCS%04d", rand.Intn(6)+20, rand.Intn(10000))
}

func GenerateRandomOTP() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}
