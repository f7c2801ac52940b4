package app

import (
	"fmt"

	"exam-judge-service/internal/domain"
)

type choiceTemplate struct {
	prompt  string
	options [4]string
	answer  string
}

type fillTemplate struct {
	prompt string
	answer string
}

type codeTemplate struct {
	prompt    string
	reference string
	script    string
}

var choiceTemplates = []choiceTemplate{
	{"Which function prints a line to standard output?", [4]string{"fmt.Println", "fmt.Scanln", "len", "os.Open"}, "A"},
	{"Which keyword declares a function?", [4]string{"def", "func", "function", "lambda"}, "B"},
	{"Which built-in returns the length of a slice?", [4]string{"size", "length", "len", "count"}, "C"},
	{"Which of these is not a built-in Go type?", [4]string{"int", "string", "char", "float64"}, "C"},
	{"What is the zero value of a bool?", [4]string{"false", "nil", "0", "true"}, "A"},
	{"Which keyword brings a package into scope?", [4]string{"include", "import", "using", "require"}, "B"},
	{"Which token starts a line comment?", [4]string{"#", "//", "--", ";"}, "B"},
	{"Which of these types is a reference to a backing array?", [4]string{"array", "string", "slice", "int"}, "C"},
	{"Which function reads a line of input?", [4]string{"fmt.Read", "bufio.Reader.ReadString", "io.Get", "os.Scan"}, "B"},
	{"Which literal creates an empty slice of ints?", [4]string{"[]int{}", "map[int]int{}", "[0]int", "nil.(int)"}, "A"},
}

var fillTemplates = []fillTemplate{
	{"The built-in integer type with platform word size is __.", "int"},
	{"The strings function that lower-cases text is strings.__.", "ToLower"},
	{"The built-in that adds elements to a slice is __.", "append"},
	{"The built-in that returns a slice's length is __.", "len"},
	{"The keyword for conditional branches is __.", "if"},
	{"The only loop keyword in Go is __.", "for"},
	{"The keyword that declares a named type is __.", "type"},
	{"The built-in that regains control after a panic is __.", "recover"},
	{"The os function that opens a file for reading is os.__.", "Open"},
	{"The statement that leaves a function with values is __.", "return"},
}

var codeTemplates = []codeTemplate{
	{
		"Write func fact(n int) int returning n factorial.",
		`func fact(n int) int {
	r := 1
	for i := 2; i <= n; i++ {
		r *= i
	}
	return r
}`,
		`inputs := []int{0, 1, 5, 7}
outputs := []int{1, 1, 120, 5040}
for i, v := range inputs {
	got := fact(v)
	assert(got == outputs[i], "fact(", v, "): expected", outputs[i], "got", got)
}`,
	},
	{
		"Write func isPrime(n int) bool reporting whether n is prime.",
		`func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}`,
		`inputs := []int{1, 2, 3, 4, 5, 17, 25}
outputs := []bool{false, true, true, false, true, true, false}
for i, v := range inputs {
	got := isPrime(v)
	assert(got == outputs[i], "isPrime(", v, "): expected", outputs[i], "got", got)
}`,
	},
	{
		"Write func fibonacci(n int) int returning the n-th Fibonacci number.",
		`func fibonacci(n int) int {
	if n <= 0 {
		return 0
	}
	a, b := 0, 1
	for i := 2; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}`,
		`inputs := []int{0, 1, 5, 10}
outputs := []int{0, 1, 5, 55}
for i, v := range inputs {
	got := fibonacci(v)
	assert(got == outputs[i], "fibonacci(", v, "): expected", outputs[i], "got", got)
}`,
	},
	{
		"Write func reverseString(s string) string returning s reversed.",
		`func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}`,
		`inputs := []string{"", "a", "hello", "gopher"}
outputs := []string{"", "a", "olleh", "rehpog"}
for i, v := range inputs {
	got := reverseString(v)
	assert(got == outputs[i], "reverseString(", v, "): expected", outputs[i], "got", got)
}`,
	},
	{
		"Write func countVowels(s string) int counting the vowels in s.",
		`func countVowels(s string) int {
	count := 0
	for _, r := range s {
		switch r {
		case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
			count++
		}
	}
	return count
}`,
		`inputs := []string{"", "hello", "Gopher", "AEIOU"}
outputs := []int{0, 2, 2, 5}
for i, v := range inputs {
	got := countVowels(v)
	assert(got == outputs[i], "countVowels(", v, "): expected", outputs[i], "got", got)
}`,
	},
}

// SampleQuestions builds the 100-question demo bank: 60 choice, 30 fill and
// 10 code questions. IDs are left zero for the store to assign.
func SampleQuestions() []domain.Question {
	out := make([]domain.Question, 0, 100)
	for i := 0; i < 100; i++ {
		switch {
		case i < 60:
			t := choiceTemplates[i%len(choiceTemplates)]
			out = append(out, domain.Question{
				Variant:    domain.VariantChoice,
				Prompt:     fmt.Sprintf("%d. %s", i+1, t.prompt),
				Options:    t.options,
				Answer:     t.answer,
				Difficulty: i%3 + 1,
			})
		case i < 90:
			t := fillTemplates[(i-60)%len(fillTemplates)]
			out = append(out, domain.Question{
				Variant:    domain.VariantFill,
				Prompt:     fmt.Sprintf("%d. %s", i+1, t.prompt),
				Answer:     t.answer,
				Difficulty: i%3 + 1,
			})
		default:
			t := codeTemplates[(i-90)%len(codeTemplates)]
			out = append(out, domain.Question{
				Variant:     domain.VariantCode,
				Prompt:      fmt.Sprintf("%d. %s", i+1, t.prompt),
				Answer:      t.reference,
				JudgeScript: t.script,
				Difficulty:  3,
			})
		}
	}
	return out
}
