package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeCheckUsage() string {
	return `Checks whether routes, views and translation keys are still referenced anywhere in a project's source text.

USE WHEN:
- Looking for dead routes, templates or translation keys before a cleanup
- Verifying that an entity is unused before deleting it
- Auditing a route or translation export from the host framework

INPUT:
- root: project directory to scan (default ".")
- manifest: path to a yaml, json or toml entity manifest, and/or
- entities: the same structure inline (routes, views, translations, entities)

INTERPRETING RESULTS:
- score is the weight of the strongest matching needle, 0 to 1
- 1.0: conclusive reference (controller action, exact view or key)
- 0.5: strong reference (route name, view path)
- 0.25: weak reference (a URI or a dynamic key prefix); verify manually
- 0: no reference found, the entity is presumed dead
- match shows the file and token that produced the score
- diagnostics list unreadable files, tokenizer fallbacks and invalid needles

Matching is textual. Entities referenced only through computed strings can be
reported as unused; treat unused as a candidate for review, not proof.`
}

func describeScoreNeedles() string {
	return `Scores ad-hoc needles against the string literals of a project.

USE WHEN:
- Testing whether any literal in the project mentions a string or pattern
- Tuning needles before adding a custom entity to a manifest

INPUT:
- root: project directory to scan (default ".")
- needles: list of {weight, text, regex}; weight in (0, 1], regex uses RE2 syntax
  and must match a whole literal unless unanchored

INTERPRETING RESULTS:
- score is the highest weight among matching needles, 0 when none match
- match shows the first file and token that produced the score`
}

func describeTokenizeFile() string {
	return `Lists the string literals janitor extracts from one file.

USE WHEN:
- Understanding why an entity is or is not matched
- Checking how a template, config or source file is tokenized

INTERPRETING RESULTS:
- tokens are the literal values in document order
- kind is the tokenization strategy chosen from the file name
- fallback is set when the format-specific strategy failed and the default
  quoted-literal rules were used instead`
}
