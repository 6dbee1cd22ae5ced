package prompt

const planTemplate = `Problem Statement: {{.Project.ProblemStatement}}

Data Context: {{.Project.DataContext}}

Available Data Files:
{{- range .Datasets}}
File: {{.Name}}
- Columns: {{join .Profile.Columns ", "}}
- Dimensions: {{.Profile.Rows}} rows × {{.Profile.Cols}} columns
{{- end}}

Based on this information, create a structured, step-by-step analytical plan.
The plan should cover data understanding, cleaning (if likely needed),
exploratory analysis, specific analyses relevant to the goal, and final synthesis.
Output this plan as a numbered list.`

const dataSummaryTemplate = `Problem Statement: {{.Project.ProblemStatement}}

Manager's Analysis Plan:
{{.Plan}}

Data Profile Summary:
{{- range .Datasets}}

## {{.Name}}
{{profileSummary .Profile}}
{{- end}}

Based on this information, provide a comprehensive summary of the data.
Explain the key characteristics, potential challenges, and initial observations
that might be relevant to the analysis plan. Focus on data quality, completeness,
and how well it aligns with the problem statement.`

const questionTemplate = `Problem Statement: {{.Project.ProblemStatement}}

Data Profile Summary:
{{- range .Datasets}}

## {{.Name}}
{{profileSummary .Profile}}
{{- end}}

Previous Analysis:
{{.Summary}}

User Question:
{{.Question}}

Please provide a detailed answer to the user's question about the data.`

const guidanceTemplate = `Problem Statement: {{.Project.ProblemStatement}}

Manager's Analysis Plan:
{{.Plan}}

Analyst's Data Summary:
{{.Summary}}

Based on this information, refine the initial steps of the plan. Define specific
hypotheses to test, identify potential edge cases or data quality issues to check
based on the summary, and formulate a clear storyline for the initial exploration.

Outline the exact next 2-3 analysis tasks for the Analyst (e.g., 'Calculate correlation
matrix for numerical columns', 'Generate frequency counts for categorical columns X and Y',
'Visualize distribution of column Z').`

const taskTemplate = `Problem Statement: {{.Project.ProblemStatement}}
{{- if .PriorTasks}}

Previous Analysis Results:
{{.PriorTasks}}

New Analysis Task: {{.Task}}
{{- else}}

Analysis Task: {{.Task}}
{{- end}}

Data Sample (first {{.SampleSize}} rows from {{.Dataset}}):
{{.Sample}}

Available Columns: {{join .Columns ", "}}

Please execute this analysis task. Provide:
1. A clear explanation of the approach
2. The Python code you would use (using pandas)
3. The results of the analysis
4. Key insights derived from the results

If the task requires visualization, describe what the visualization would show.`

const reviewTemplate = `Problem Statement: {{.Project.ProblemStatement}}

Original Analysis Guidance:
{{.Guidance}}

Analysis Results:
{{- range $i, $r := .Results}}

Analysis {{inc $i}}: {{$r.Task}}
{{truncate $r.Result $.Budget}}
{{- end}}

Please review these analysis results. Provide:
1. An assessment of how well the analyses address the problem statement
2. Key insights derived from the combined results
3. Recommendations for next steps or additional analyses
4. Any potential issues or limitations in the current analyses`

const reportTemplate = `Project Name: {{.Project.Name}}

Problem Statement: {{.Project.ProblemStatement}}

Original Analysis Plan:
{{.Plan}}

Data Summary:
{{.Summary}}

Analysis Results:
{{- range $i, $r := .Results}}

Analysis {{inc $i}}: {{$r.Task}}
{{truncate $r.Result $.Budget}}
{{- end}}

Synthesize this information into a coherent final report for a business audience.
The report should be structured with:
1. Executive Summary
2. Key Findings/Takeaways (bullet points)
3. Overview of Analysis Performed
4. Detailed Findings (referencing specific analyses)
5. Limitations (if any observed)
6. Recommendations/Next Steps (if applicable based on findings)

Format the output in Markdown suitable for direct rendering in HTML.`

const revisionTemplate = `Original {{.Title}}:
{{.Current}}

User Feedback:
{{.Feedback}}

Please revise the {{.Noun}} based on this feedback.
{{.Format}}`
