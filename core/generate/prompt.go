package generate

import "strings"

const unitContract = `For EACH file, output STRICTLY as:

FILE: unit-tests/pom.xml
` + "```xml\n...pom...\n```" + `

FILE: unit-tests/src/test/java/<package>/<ClassName>Test.java
` + "```java\n// imports\n// Arrange/Act/Assert tests\n```" + `
`

const bddContract = `For EACH file, output STRICTLY as:

FILE: bdd-tests/pom.xml
` + "```xml\n...pom...\n```" + `

FILE: bdd-tests/src/test/java/com/generated/bdd/CucumberRunner.java
` + "```java\n// JUnit Platform runner for Cucumber\n```" + `

FILE: bdd-tests/src/test/java/com/generated/bdd/steps/StepDefinitions.java
` + "```java\n// step definitions using AssertJ\n```" + `

FILE: bdd-tests/src/test/resources/features/<feature>.feature
` + "```gherkin\nFeature: ...\n```" + `
`

// BuildPrompt assembles the generation prompt from the repository
// context, the user's request and the selected suite kind. Exactly one
// of doUnit and doBDD should be set.
func BuildPrompt(repoContext, userPrompt string, doUnit, doBDD bool) string {
	var b strings.Builder
	b.WriteString("You are a senior Java test engineer. Analyze the repository context below and ")
	b.WriteString("generate a complete, runnable test suite targeting REAL classes and methods.\n\n")

	if doUnit {
		b.WriteString("Produce JUnit 5 unit tests with AssertJ assertions and Mockito for isolation.\n")
		b.WriteString("Requirements:\n")
		b.WriteString("- Output ONLY files under unit-tests/** using the exact FILE format below.\n")
		b.WriteString("- Include a minimal Maven pom at unit-tests/pom.xml with junit-jupiter, mockito-core and assertj-core.\n")
		b.WriteString("- Tests follow Arrange // Act // Assert structure with behavior-oriented names.\n")
		b.WriteString("- Cover edge cases and negative paths; keep tests deterministic, no sleeps.\n")
		b.WriteString("- Target real classes and methods from the context; NO placeholders.\n\n")
		b.WriteString(unitContract)
	}
	if doBDD {
		b.WriteString("Produce a Cucumber JVM suite on JUnit 5 that maps one-to-one to real repository flows.\n")
		b.WriteString("Requirements:\n")
		b.WriteString("- Output ONLY files under bdd-tests/** using the exact FILE format below.\n")
		b.WriteString("- Scenarios reference real classes, methods and endpoints; keep names consistent with code symbols.\n")
		b.WriteString("- Step definitions contain full Java implementations with AssertJ, never empty methods.\n")
		b.WriteString("- Include a minimal Maven pom at bdd-tests/pom.xml with cucumber-java, cucumber-junit-platform-engine, junit-jupiter and assertj-core.\n\n")
		b.WriteString(bddContract)
	}

	if userPrompt != "" {
		b.WriteString("\nUSER PROMPT:\n")
		b.WriteString(userPrompt)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(repoContext)
	return b.String()
}
